// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	DBPath         string
	GRPCHealthAddr string
	ChatRetention  time.Duration // 0 disables the retention worker
	LLM            LLMConfig
	Embedding      EmbeddingConfig
	Cards          CardsConfig
	CreditProfile  CreditProfileConfig
	Questions      QuestionsConfig
	RateLimit      RateLimitConfig
	HTTP           HTTPConfig
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	BaseURL       string
	APIKey        string
	ChatModel     string
	QuestionModel string
	Temperature   float32
	Timeout       time.Duration
	Referer       string
	Title         string
	UseMock       bool
}

// EmbeddingConfig configures the embedding endpoint used for card lookups.
type EmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// CardsConfig selects the credit-card similarity backend.
type CardsConfig struct {
	Backend     string // "memory", "postgres" or "none"
	PostgresDSN string
	SeedPath    string
	Threshold   float64
	Limit       int
}

// CreditProfileConfig points at the upstream credit-profile insights API.
type CreditProfileConfig struct {
	URL     string
	Timeout time.Duration
}

// QuestionsConfig controls suggested-question parsing.
type QuestionsConfig struct {
	LenientParse bool
}

// RateLimitConfig controls per-user chat throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// HTTPConfig holds request limits.
type HTTPConfig struct {
	MaxRequestBodySize int64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	apiKey := getEnv("LLM_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("OPENROUTER_API_KEY", "")
	}
	embedKey := getEnv("EMBEDDING_API_KEY", "")
	if embedKey == "" {
		embedKey = getEnv("TOGETHER_API_KEY", "")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/credpilot.db"),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
		ChatRetention:  getEnvDuration("CHAT_RETENTION", 0),
		LLM: LLMConfig{
			BaseURL:       getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			APIKey:        apiKey,
			ChatModel:     getEnv("LLM_CHAT_MODEL", "mistralai/mistral-7b-instruct"),
			QuestionModel: getEnv("LLM_QUESTION_MODEL", "mistralai/mistral-7b-instruct"),
			Temperature:   getEnvFloat32("LLM_TEMPERATURE", 0.7),
			Timeout:       getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			Referer:       getEnv("LLM_REFERER", ""),
			Title:         getEnv("LLM_TITLE", "Financial Advisor Chat"),
			UseMock:       getEnvBool("LLM_USE_MOCK", false),
		},
		Embedding: EmbeddingConfig{
			BaseURL: getEnv("EMBEDDING_BASE_URL", "https://api.together.xyz/v1"),
			APIKey:  embedKey,
			Model:   getEnv("EMBEDDING_MODEL", "togethercomputer/m2-bert-80M-8k-retrieval"),
		},
		Cards: CardsConfig{
			Backend:     strings.ToLower(getEnv("CARDS_BACKEND", "memory")),
			PostgresDSN: getEnv("CARDS_POSTGRES_DSN", ""),
			SeedPath:    getEnv("CARDS_SEED_PATH", ""),
			Threshold:   0.5,
			Limit:       3,
		},
		CreditProfile: CreditProfileConfig{
			URL:     getEnv("CREDIT_PROFILE_URL", "https://app.minemi.ai/api/v1/credit-profile-insights"),
			Timeout: getEnvDuration("CREDIT_PROFILE_TIMEOUT", 15*time.Second),
		},
		Questions: QuestionsConfig{
			LenientParse: getEnvBool("QUESTIONS_LENIENT_PARSE", false),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		HTTP: HTTPConfig{
			MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM_BASE_URL cannot be empty")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be > 0")
	}
	switch c.Cards.Backend {
	case "memory", "none":
	case "postgres":
		if c.Cards.PostgresDSN == "" {
			return fmt.Errorf("CARDS_POSTGRES_DSN is required for postgres card backend")
		}
	default:
		return fmt.Errorf("unknown CARDS_BACKEND %q", c.Cards.Backend)
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.HTTP.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.ChatRetention < 0 {
		return fmt.Errorf("CHAT_RETENTION cannot be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins derived from FrontendURL.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat32(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
