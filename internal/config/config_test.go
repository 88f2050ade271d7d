package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.LLM.APIKey != "or-key" {
		t.Errorf("expected OPENROUTER_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
	if cfg.Cards.Backend != "memory" {
		t.Errorf("expected memory card backend, got %q", cfg.Cards.Backend)
	}
	if cfg.ChatRetention != 0 {
		t.Errorf("expected retention disabled, got %v", cfg.ChatRetention)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("QUESTIONS_LENIENT_PARSE", "yes")
	t.Setenv("CHAT_RETENTION", "72h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.LLM.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.Temperature < 0.19 || cfg.LLM.Temperature > 0.21 {
		t.Errorf("expected temperature 0.2, got %v", cfg.LLM.Temperature)
	}
	if !cfg.Questions.LenientParse {
		t.Error("expected lenient parsing to be enabled")
	}
	if cfg.ChatRetention != 72*time.Hour {
		t.Errorf("expected 72h retention, got %v", cfg.ChatRetention)
	}
}

func TestValidateRejectsPostgresWithoutDSN(t *testing.T) {
	t.Setenv("CARDS_BACKEND", "postgres")
	t.Setenv("CARDS_POSTGRES_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for postgres backend without DSN")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	t.Setenv("CARDS_BACKEND", "redis")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown card backend")
	}
}

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		frontend string
		want     string
	}{
		{"", "*"},
		{"http://localhost:5173", "*"},
		{"https://advisor.example.com/", "https://advisor.example.com"},
	}
	for _, tt := range tests {
		cfg := &Config{FrontendURL: tt.frontend}
		got := cfg.AllowedOrigins()
		if len(got) != 1 || got[0] != tt.want {
			t.Errorf("AllowedOrigins(%q) = %v, want [%s]", tt.frontend, got, tt.want)
		}
	}
}
