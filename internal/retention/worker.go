// Package retention deletes chat sessions that have been idle too long.
package retention

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/credpilot/internal/store"
)

// DefaultInterval is how often the worker sweeps.
const DefaultInterval = 5 * time.Minute

// StartWorker runs a background goroutine that periodically deletes sessions
// with no activity for ttl. It stops when ctx is done.
func StartWorker(ctx context.Context, repo store.Repository, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep deletes every inactive session once and returns how many were removed.
func Sweep(ctx context.Context, repo store.Repository, ttl time.Duration) int {
	expired, err := repo.InactiveSessions(ctx, ttl)
	if err != nil {
		slog.Error("Retention worker failed to list inactive sessions", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	slog.Info("Retention worker found inactive sessions", "count", len(expired))

	deleted := 0
	for _, session := range expired {
		err := repo.DeleteSession(ctx, session.ID)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, store.ErrNotFound):
			// Deleted by the user in the meantime.
		case ctx.Err() != nil:
			slog.Debug("Retention worker interrupted", "session_id", session.ID, "error", err)
			return deleted
		default:
			slog.Warn("Retention worker failed to delete session",
				"error", err,
				"session_id", session.ID,
				"user_id", session.UserID)
		}
	}

	slog.Info("Retention worker cleanup completed", "deleted", deleted)
	return deleted
}
