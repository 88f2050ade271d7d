package cards

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/llm"
)

// Defaults used by the recommender when none are configured.
const (
	DefaultThreshold = 0.5
	DefaultLimit     = 3
)

// ApologyMessage is returned when the model produces no recommendation.
const ApologyMessage = "I apologize, but I couldn't process your credit card recommendation request at this time."

const recommenderSystemPrompt = "You are a helpful financial advisor specializing in credit card recommendations."

var cardKeywords = []string{
	"credit card",
	"credit cards",
	"card recommendation",
	"card suggestions",
	"which card",
	"best card",
	"recommend a card",
}

// IsCardQuery reports whether text asks about credit cards.
func IsCardQuery(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range cardKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Recommender answers card questions from the closest catalog entries.
type Recommender struct {
	embedder  llm.Embedder
	finder    Finder
	llm       llm.Completer
	threshold float64
	limit     int
	logger    *slog.Logger
}

// NewRecommender creates a recommender. Non-positive limits fall back to
// DefaultLimit.
func NewRecommender(embedder llm.Embedder, finder Finder, completer llm.Completer, threshold float64, limit int, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recommender{
		embedder:  embedder,
		finder:    finder,
		llm:       completer,
		threshold: threshold,
		limit:     limit,
		logger:    logger,
	}
}

// Recommend embeds query, looks up similar cards and asks the model for a
// recommendation grounded on them.
func (r *Recommender) Recommend(ctx context.Context, query string) (string, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed card query: %w", err)
	}

	matches, err := r.finder.Match(ctx, vec, r.threshold, r.limit)
	if err != nil {
		return "", fmt.Errorf("find similar cards: %w", err)
	}
	r.logger.Debug("card lookup finished", "matches", len(matches))

	reply, err := r.llm.Complete(ctx, BuildPrompt(query, matches))
	if err != nil {
		return "", fmt.Errorf("card recommendation: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return ApologyMessage, nil
	}
	return reply, nil
}

// BuildPrompt renders the recommendation prompt for query and matches.
func BuildPrompt(query string, matches []domain.CreditCard) llm.Prompt {
	lines := make([]string, 0, len(matches))
	for _, c := range matches {
		lines = append(lines, fmt.Sprintf("%s from %s: Annual fee: %s, Features: %s", c.CardName, c.BankName, c.AnnualFee, c.Features))
	}

	user := fmt.Sprintf("Based on the user's query %q and these relevant credit cards:\n\n%s\n\n"+
		"Provide a helpful recommendation. Focus on matching the user's needs with the card features. "+
		"Keep the response under 150 words.", query, strings.Join(lines, "\n"))

	return llm.Prompt{System: recommenderSystemPrompt, User: user}
}
