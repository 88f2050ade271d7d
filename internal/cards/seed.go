package cards

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/llm"
)

// Seed loads a JSON array of cards from path into catalog. Cards without an
// embedding are embedded from their name, bank and features. It returns the
// number of cards written.
func Seed(ctx context.Context, catalog Catalog, embedder llm.Embedder, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read card seed: %w", err)
	}
	var cards []domain.CreditCard
	if err := json.Unmarshal(data, &cards); err != nil {
		return 0, fmt.Errorf("decode card seed: %w", err)
	}

	for i, card := range cards {
		if card.ID == "" {
			return i, fmt.Errorf("card %d has no id", i)
		}
		if len(card.Embedding) == 0 {
			if embedder == nil {
				return i, fmt.Errorf("card %s has no embedding and no embedder is configured", card.ID)
			}
			vec, err := embedder.Embed(ctx, describe(card))
			if err != nil {
				return i, fmt.Errorf("embed card %s: %w", card.ID, err)
			}
			card.Embedding = vec
		}
		if err := catalog.Upsert(ctx, card); err != nil {
			return i, err
		}
	}
	return len(cards), nil
}

func describe(card domain.CreditCard) string {
	return strings.Join([]string{card.CardName, card.BankName, card.AnnualFee, card.Features}, " ")
}
