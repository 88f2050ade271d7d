// Package llm wraps the OpenAI-compatible completion and embedding endpoints.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

var (
	// ErrMissingAPIKey is returned before any network call when no key is configured.
	ErrMissingAPIKey = errors.New("llm api key is not configured")
	// ErrEmptyResponse is returned when the provider answers without choices.
	ErrEmptyResponse = errors.New("no response content found")
)

// Prompt is a single system/user exchange sent to the model.
type Prompt struct {
	System string
	User   string
}

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ClientConfig configures an OpenAI-compatible client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	// Referer and Title are sent as HTTP-Referer and X-Title, which
	// OpenRouter uses for attribution.
	Referer string
	Title   string
}

// Client implements Completer and Embedder on top of go-openai.
type Client struct {
	api         *openai.Client
	apiKey      string
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewClient creates a client for the given endpoint and model.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &headerTransport{
			base:    http.DefaultTransport,
			referer: cfg.Referer,
			title:   cfg.Title,
		},
	}

	return &Client{
		api:         openai.NewClientWithConfig(oc),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the prompt as a system + user message pair.
func (c *Client) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.User,
	})

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("chat completion failed (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("chat completion finished",
		"model", c.model,
		"duration", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// Embed returns the embedding of text using the configured model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("invalid embedding format from provider")
	}
	return resp.Data[0].Embedding, nil
}

type headerTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.referer == "" && t.title == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		req.Header.Set("X-Title", t.title)
	}
	return t.base.RoundTrip(req)
}

var (
	_ Completer = (*Client)(nil)
	_ Embedder  = (*Client)(nil)
)
