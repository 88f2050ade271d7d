// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/credpilot/internal/domain"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the interface for persisting users, chat sessions and messages.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil when missing.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateSession inserts a new chat session.
	CreateSession(ctx context.Context, session *domain.ChatSession) error

	// GetSession retrieves a session by ID or returns ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*domain.ChatSession, error)

	// ListSessions returns a user's sessions, newest first.
	ListSessions(ctx context.Context, userID string) ([]*domain.ChatSession, error)

	// AppendMessage inserts a message. Messages are never updated.
	AppendMessage(ctx context.Context, msg *domain.ChatMessage) error

	// ListMessages returns a session's messages, oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]*domain.ChatMessage, error)

	// DeleteSession removes a session together with its messages.
	DeleteSession(ctx context.Context, sessionID string) error

	// InactiveSessions returns sessions whose latest activity is older than ttl.
	InactiveSessions(ctx context.Context, ttl time.Duration) ([]*domain.ChatSession, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
