package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for concurrent readers; foreign keys for message cascade.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id, created_at);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, last_seen_at, created_at FROM users WHERE user_id = ?`, userID)

	var user domain.User
	var lastSeen, createdAt int64
	err := row.Scan(&user.UserID, &lastSeen, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.UnixMilli(lastSeen)
	user.CreatedAt = time.UnixMilli(createdAt)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, last_seen_at, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		last_seen_at = excluded.last_seen_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.LastSeenAt.UnixMilli(), user.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_seen_at = ? WHERE user_id = ?`, lastSeen.UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// CreateSession inserts a new chat session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.ChatSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, created_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.Title, session.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert chat session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at FROM chat_sessions WHERE id = ?`, sessionID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}
	return session, nil
}

// ListSessions returns a user's sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]*domain.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at FROM chat_sessions
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query chat sessions: %w", err)
	}
	return collectSessions(rows)
}

// AppendMessage inserts a message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, user_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.UserID, string(msg.Role), msg.Content, msg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListMessages returns a session's messages, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, user_id, role, content, created_at FROM chat_messages
		WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat message rows", "error", closeErr)
		}
	}()

	var msgs []*domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var role string
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message row: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return msgs, nil
}

// DeleteSession removes a session and its messages, retrying on SQLITE_BUSY.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	err := shared.RetryOnConflict(ctx, 3, 100*time.Millisecond, "delete_session", func() error {
		return s.deleteSessionOnce(ctx, sessionID)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete chat session %s: %w", sessionID, err)
	}
	return err
}

func (s *SQLiteStore) deleteSessionOnce(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("failed to roll back session delete", "error", rbErr)
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete chat messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// InactiveSessions returns sessions whose latest message, or creation time
// when empty, is older than ttl.
func (s *SQLiteStore) InactiveSessions(ctx context.Context, ttl time.Duration) ([]*domain.ChatSession, error) {
	threshold := time.Now().Add(-ttl).UnixMilli()
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.title, s.created_at
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id
		GROUP BY s.id
		HAVING COALESCE(MAX(m.created_at), s.created_at) < ?`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query inactive sessions: %w", err)
	}
	return collectSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.ChatSession, error) {
	var session domain.ChatSession
	var createdAt int64
	if err := row.Scan(&session.ID, &session.UserID, &session.Title, &createdAt); err != nil {
		return nil, err
	}
	session.CreatedAt = time.UnixMilli(createdAt)
	return &session, nil
}

func collectSessions(rows *sql.Rows) ([]*domain.ChatSession, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat sessions: %w", err)
	}
	return sessions, nil
}
