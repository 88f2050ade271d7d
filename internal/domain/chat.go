package domain

import (
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks messages typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks model-generated replies.
	RoleAssistant Role = "assistant"
)

// SessionTitleLimit is the number of characters of the first message kept as title.
const SessionTitleLimit = 50

// ChatSession is a named, persisted conversation thread.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is an append-only entry in a session.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionTitle derives a session title from the first message of a conversation.
func SessionTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) <= SessionTitleLimit {
		return firstMessage
	}
	return string(runes[:SessionTitleLimit]) + "..."
}
