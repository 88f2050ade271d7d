package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/credpilot/internal/identity"
	"github.com/ashureev/credpilot/internal/profile"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Client frame types.
const (
	FrameMessage = "message"
	FrameNewChat = "new_chat"
	FrameResume  = "resume"
)

// Server frame types.
const (
	FrameReply   = "reply"
	FrameError   = "error"
	FrameSession = "session"
)

// ClientFrame is a message sent by the browser.
type ClientFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// ServerFrame is a message sent to the browser.
type ServerFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Error     string `json:"error,omitempty"`
	Turns     []Turn `json:"turns,omitempty"`
	Persona   string `json:"persona,omitempty"`
}

// WebSocketHandler holds one Conversation per connection.
type WebSocketHandler struct {
	svc           *Service
	profiles      profile.Fetcher
	rateLimiter   *RateLimiter
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket chat handler.
func NewWebSocketHandler(svc *Service, profiles profile.Fetcher, limiter *RateLimiter, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		svc:           svc,
		profiles:      profiles,
		rateLimiter:   limiter,
		allowedOrigin: strings.TrimRight(allowedOrigin, "/"),
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx := r.Context()
	conv := NewConversation(userID, h.profiles.Fetch(ctx, userID))
	slog.Info("Chat connection opened", "user_id", userID, "persona", conv.Persona.ID)

	if err := wsjson.Write(ctx, ws, ServerFrame{Type: FrameSession, Persona: string(conv.Persona.ID)}); err != nil {
		return
	}

	for {
		var frame ClientFrame
		if err := wsjson.Read(ctx, ws, &frame); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("Chat connection closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var out ServerFrame
		conv, out = h.dispatch(ctx, conv, frame)
		if err := wsjson.Write(ctx, ws, out); err != nil {
			slog.Debug("WebSocket write error", "error", err, "user_id", userID)
			return
		}
	}
}

// dispatch handles one client frame and returns the conversation to use
// from now on together with the frame to send back.
func (h *WebSocketHandler) dispatch(ctx context.Context, conv *Conversation, frame ClientFrame) (*Conversation, ServerFrame) {
	switch frame.Type {
	case FrameMessage:
		if h.rateLimiter != nil && !h.rateLimiter.Allow(conv.UserID) {
			return conv, ServerFrame{Type: FrameError, SessionID: conv.SessionID, Error: "rate limit exceeded"}
		}
		exchange, err := h.svc.Send(ctx, conv, frame.Content)
		if err != nil {
			_, msg := statusFor(err)
			return conv, ServerFrame{Type: FrameError, SessionID: conv.SessionID, Error: msg}
		}
		return conv, ServerFrame{
			Type:      FrameReply,
			SessionID: exchange.SessionID,
			Content:   exchange.AssistantMessage.Content,
		}

	case FrameNewChat:
		conv.Reset()
		return conv, ServerFrame{Type: FrameSession, Persona: string(conv.Persona.ID)}

	case FrameResume:
		resumed, err := h.svc.Resume(ctx, conv.UserID, frame.SessionID, conv.Profile)
		if err != nil {
			_, msg := statusFor(err)
			return conv, ServerFrame{Type: FrameError, SessionID: conv.SessionID, Error: msg}
		}
		return resumed, ServerFrame{Type: FrameSession, SessionID: resumed.SessionID, Turns: resumed.Turns}

	default:
		return conv, ServerFrame{Type: FrameError, SessionID: conv.SessionID, Error: "unknown frame type"}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
