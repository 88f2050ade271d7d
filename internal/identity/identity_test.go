package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ashureev/credpilot/internal/store"
)

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "identity.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMiddlewareIssuesCookieAndCreatesUser(t *testing.T) {
	repo := newRepo(t)
	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !isValidAnonID(seen) {
		t.Fatalf("expected generated anon id, got %q", seen)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != AnonCookieName || cookies[0].Value != seen {
		t.Fatalf("expected identity cookie for %s, got %+v", seen, cookies)
	}
	if cookies[0].Secure {
		t.Error("expected insecure cookie in development")
	}

	user, err := repo.GetUser(context.Background(), seen)
	if err != nil || user == nil {
		t.Fatalf("expected user to be created, got %v, %v", user, err)
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	repo := newRepo(t)
	id := "anon_0123456789abcdef0123456789abcdef"
	var seen string
	h := Middleware(repo, false)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: id})
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	if seen != id {
		t.Fatalf("expected %s, got %s", id, seen)
	}
}

func TestMiddlewareReplacesInvalidCookie(t *testing.T) {
	repo := newRepo(t)
	var seen string
	h := Middleware(repo, true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "not-an-id"})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen == "not-an-id" || !isValidAnonID(seen) {
		t.Fatalf("expected a fresh id, got %q", seen)
	}
}

func TestUserIDFromEmptyContext(t *testing.T) {
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user id, got %q", got)
	}
}
