package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/identity"
	"github.com/ashureev/credpilot/internal/persona"
	"github.com/ashureev/credpilot/internal/profile"
	"github.com/ashureev/credpilot/internal/questions"
	"github.com/go-chi/chi/v5"
)

// AdvisorHandler serves the credit profile, persona and suggested questions.
type AdvisorHandler struct {
	profiles  profile.Fetcher
	generator *questions.Generator
}

// NewAdvisorHandler creates the profile and questions handler.
func NewAdvisorHandler(profiles profile.Fetcher, generator *questions.Generator) *AdvisorHandler {
	return &AdvisorHandler{profiles: profiles, generator: generator}
}

type profileResponse struct {
	Profile domain.CreditProfile `json:"profile"`
	Persona persona.Persona      `json:"persona"`
}

// HandleProfile handles GET /api/profile.
func (h *AdvisorHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p := h.profiles.Fetch(r.Context(), userID)
	JSON(w, http.StatusOK, profileResponse{Profile: p, Persona: persona.ForProfile(p)})
}

// HandleQuestions handles POST /api/questions. Generation failures are
// reported through the degraded flag rather than an error status.
func (h *AdvisorHandler) HandleQuestions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	p := h.profiles.Fetch(r.Context(), userID)
	res := h.generator.Suggest(r.Context(), p)
	slog.Info("Suggested questions generated",
		"user_id", userID,
		"persona", res.Persona.ID,
		"count", len(res.Questions),
		"degraded", res.Degraded,
	)
	JSON(w, http.StatusOK, res)
}

// RegisterRoutes registers advisor routes.
func (h *AdvisorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/profile", h.HandleProfile)
	r.Post("/api/questions", h.HandleQuestions)
}
