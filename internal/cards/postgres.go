package cards

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ashureev/credpilot/internal/domain"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresFinder matches cards with pgvector's cosine distance operator.
type PostgresFinder struct {
	db *sql.DB
}

// NewPostgres connects to dsn and makes sure the credit_cards table exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresFinder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	f := &PostgresFinder{db: db}
	if err := f.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize card schema: %w", err)
	}
	return f, nil
}

func (f *PostgresFinder) initSchema(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;
	CREATE TABLE IF NOT EXISTS credit_cards (
		id TEXT PRIMARY KEY,
		card_name TEXT NOT NULL,
		bank_name TEXT NOT NULL,
		annual_fee TEXT NOT NULL DEFAULT '',
		features TEXT NOT NULL DEFAULT '',
		embedding vector NOT NULL
	);`
	if _, err := f.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create credit_cards: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a card.
func (f *PostgresFinder) Upsert(ctx context.Context, card domain.CreditCard) error {
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO credit_cards (id, card_name, bank_name, annual_fee, features, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			card_name = excluded.card_name,
			bank_name = excluded.bank_name,
			annual_fee = excluded.annual_fee,
			features = excluded.features,
			embedding = excluded.embedding`,
		card.ID, card.CardName, card.BankName, card.AnnualFee, card.Features, pgvector.NewVector(card.Embedding))
	if err != nil {
		return fmt.Errorf("upsert credit card %s: %w", card.ID, err)
	}
	return nil
}

// Match implements Finder.
func (f *PostgresFinder) Match(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.CreditCard, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := f.db.QueryContext(ctx, `
		SELECT id, card_name, bank_name, annual_fee, features, 1 - (embedding <=> $1) AS similarity
		FROM credit_cards
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("query similar cards: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close credit card rows", "error", closeErr)
		}
	}()

	var cards []domain.CreditCard
	for rows.Next() {
		var c domain.CreditCard
		if err := rows.Scan(&c.ID, &c.CardName, &c.BankName, &c.AnnualFee, &c.Features, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan credit card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit cards: %w", err)
	}
	return cards, nil
}

// Close closes the database connection.
func (f *PostgresFinder) Close() error {
	if err := f.db.Close(); err != nil {
		return fmt.Errorf("close postgres: %w", err)
	}
	return nil
}

var _ Catalog = (*PostgresFinder)(nil)
