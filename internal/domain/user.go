// Package domain contains core domain types for the advisory chat service.
package domain

import (
	"time"
)

// User is an anonymous per-device identity.
type User struct {
	UserID     string    `json:"user_id"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}
