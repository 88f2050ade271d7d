package chat

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/credpilot/internal/api"
	"github.com/ashureev/credpilot/internal/identity"
	"github.com/ashureev/credpilot/internal/llm"
	"github.com/ashureev/credpilot/internal/profile"
	"github.com/ashureev/credpilot/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const defaultMaxRequestBodySize = 1 << 20

// SendRequest is the body of POST /api/chat/messages.
type SendRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Handler serves the chat HTTP API.
type Handler struct {
	svc         *Service
	profiles    profile.Fetcher
	rateLimiter *RateLimiter
	maxBodySize int64
}

// NewHandler creates a chat handler. A non-positive maxBodySize uses 1 MiB.
func NewHandler(svc *Service, profiles profile.Fetcher, limiter *RateLimiter, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &Handler{
		svc:         svc,
		profiles:    profiles,
		rateLimiter: limiter,
		maxBodySize: maxBodySize,
	}
}

// HandleSend handles POST /api/chat/messages.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if h.rateLimiter != nil && !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := h.profiles.Fetch(r.Context(), userID)

	conv := NewConversation(userID, p)
	if req.SessionID != "" {
		resumed, err := h.svc.Resume(r.Context(), userID, req.SessionID, p)
		if err != nil {
			writeError(w, err)
			return
		}
		conv = resumed
	}

	slog.Info("Chat message received",
		"user_id", userID,
		"session_id", conv.SessionID,
		"persona", conv.Persona.ID,
		"message_length", len(req.Message),
		"request_id", chiMiddleware.GetReqID(r.Context()),
	)

	exchange, err := h.svc.Send(r.Context(), conv, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, exchange)
}

// HandleSessions handles GET /api/chat/sessions.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.svc.History(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

// HandleMessages handles GET /api/chat/sessions/{id}/messages.
func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	msgs, err := h.svc.Messages(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// HandleDelete handles DELETE /api/chat/sessions/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/messages", h.HandleSend)
		r.Get("/sessions", h.HandleSessions)
		r.Get("/sessions/{id}/messages", h.HandleMessages)
		r.Delete("/sessions/{id}", h.HandleDelete)
	})
}

// statusFor maps service errors to an HTTP status and user-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest, "message is required"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, llm.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, "chat is unavailable: the language model API key is not configured"
	case errors.Is(err, ErrCompletion):
		return http.StatusBadGateway, api.GenericErrorMessage
	default:
		return http.StatusInternalServerError, api.GenericErrorMessage
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Chat request failed", "status", status, "error", err)
	}
	api.Error(w, status, msg)
}
