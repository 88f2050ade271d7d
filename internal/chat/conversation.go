// Package chat runs advisory conversations against the completion model.
package chat

import (
	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/persona"
)

// Turn is one message in a conversation as shown to the user.
type Turn struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
}

// Conversation is the per-client state of a chat: the session it writes to,
// the user's profile and persona, and what has been said so far.
// A Conversation is not safe for concurrent use.
type Conversation struct {
	SessionID string
	UserID    string
	Profile   domain.CreditProfile
	Persona   persona.Persona
	Turns     []Turn
	// Context holds prior message contents fed back into the prompt.
	Context []string
}

// NewConversation starts a conversation with no session yet.
func NewConversation(userID string, profile domain.CreditProfile) *Conversation {
	return &Conversation{
		UserID:  userID,
		Profile: profile,
		Persona: persona.ForProfile(profile),
	}
}

// Reset detaches the conversation from its session so the next message
// starts a new one.
func (c *Conversation) Reset() {
	c.SessionID = ""
	c.Turns = nil
	c.Context = nil
}

func (c *Conversation) record(role domain.Role, content string) {
	c.Turns = append(c.Turns, Turn{Role: role, Content: content})
}
