package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/identity"
	"github.com/ashureev/credpilot/internal/llm"
	"github.com/ashureev/credpilot/internal/persona"
	"github.com/ashureev/credpilot/internal/questions"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadGateway, GenericErrorMessage)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != GenericErrorMessage {
		t.Errorf("Expected generic error, got %q", got["error"])
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantDB   string
	}{
		{"healthy", nil, http.StatusOK, "ok"},
		{"database down", errors.New("closed"), http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(fakePinger{err: tt.err}).Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
			var got struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if got.Checks["database"] != tt.wantDB {
				t.Errorf("Expected database=%s, got %s", tt.wantDB, got.Checks["database"])
			}
		})
	}
}

type staticProfiles struct{ p domain.CreditProfile }

func (s staticProfiles) Fetch(context.Context, string) domain.CreditProfile { return s.p }

func withUser(r *http.Request) *http.Request {
	return r.WithContext(identity.WithUserID(r.Context(), "anon_test"))
}

func TestHandleProfile(t *testing.T) {
	h := NewAdvisorHandler(staticProfiles{p: domain.CreditProfile{CreditScore: "820"}}, nil)

	w := httptest.NewRecorder()
	h.HandleProfile(w, withUser(httptest.NewRequest(http.MethodGet, "/api/profile", nil)))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got profileResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Persona.ID != persona.Persona6 {
		t.Errorf("Expected Persona 6, got %s", got.Persona.ID)
	}
}

func TestHandleProfileRequiresIdentity(t *testing.T) {
	h := NewAdvisorHandler(staticProfiles{}, nil)
	w := httptest.NewRecorder()
	h.HandleProfile(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestHandleQuestionsDegrades(t *testing.T) {
	mock := llm.NewMock()
	mock.Reply = func(llm.Prompt) (string, error) { return "", llm.ErrMissingAPIKey }
	gen := questions.NewGenerator(mock, questions.Parser{}, nil)
	h := NewAdvisorHandler(staticProfiles{p: domain.FallbackCreditProfile()}, gen)

	w := httptest.NewRecorder()
	h.HandleQuestions(w, withUser(httptest.NewRequest(http.MethodPost, "/api/questions", nil)))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got questions.Result
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !got.Degraded || len(got.Questions) != 1 || got.Questions[0] != questions.FallbackMessage {
		t.Errorf("Expected degraded fallback, got %+v", got)
	}
}

func TestHandleQuestions(t *testing.T) {
	gen := questions.NewGenerator(llm.NewMock(), questions.Parser{}, nil)
	h := NewAdvisorHandler(staticProfiles{p: domain.FallbackCreditProfile()}, gen)

	w := httptest.NewRecorder()
	h.HandleQuestions(w, withUser(httptest.NewRequest(http.MethodPost, "/api/questions", nil)))

	var got questions.Result
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Degraded || len(got.Questions) != 4 {
		t.Errorf("Expected 4 questions, got %+v", got)
	}
	if got.Persona.ID != persona.Persona3 {
		t.Errorf("Expected Persona 3 for fallback profile, got %s", got.Persona.ID)
	}
}
