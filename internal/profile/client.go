// Package profile fetches credit profiles from the upstream insights service.
package profile

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/credpilot/internal/domain"
)

// maxResponseSize bounds how much of the upstream body is read.
const maxResponseSize = 1 << 20

// Fetcher returns the credit profile for a user.
type Fetcher interface {
	Fetch(ctx context.Context, userID string) domain.CreditProfile
}

// Client calls the credit-profile insights endpoint.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a profile client. An empty url disables the upstream
// call and every Fetch returns the fallback profile.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type insightsRequest struct {
	Token string `json:"token"`
}

type insightsResponse struct {
	Data *domain.CreditProfile `json:"data"`
}

// Fetch never fails: upstream errors are logged and the fallback profile
// is returned instead.
func (c *Client) Fetch(ctx context.Context, userID string) domain.CreditProfile {
	if c.url == "" {
		return domain.FallbackCreditProfile()
	}
	p, err := c.fetch(ctx, userID)
	if err != nil {
		c.logger.Warn("credit profile fetch failed, using fallback", "user_id", userID, "error", err)
		return domain.FallbackCreditProfile()
	}
	return p
}

func (c *Client) fetch(ctx context.Context, userID string) (domain.CreditProfile, error) {
	token := base64.StdEncoding.EncodeToString([]byte(userID))
	body, err := json.Marshal(insightsRequest{Token: token})
	if err != nil {
		return domain.CreditProfile{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.CreditProfile{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CreditProfile{}, fmt.Errorf("request credit profile: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close credit profile body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.CreditProfile{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out insightsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return domain.CreditProfile{}, fmt.Errorf("decode credit profile: %w", err)
	}
	if out.Data == nil {
		return domain.CreditProfile{}, fmt.Errorf("response has no data")
	}
	return *out.Data, nil
}

var _ Fetcher = (*Client)(nil)
