// Package cards recommends credit cards by embedding similarity.
package cards

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/ashureev/credpilot/internal/domain"
)

// Finder returns the cards closest to an embedding.
type Finder interface {
	// Match returns at most limit cards whose cosine similarity to embedding
	// exceeds threshold, most similar first.
	Match(ctx context.Context, embedding []float32, threshold float64, limit int) ([]domain.CreditCard, error)
}

// Catalog is a Finder that can also be written to.
type Catalog interface {
	Finder
	Upsert(ctx context.Context, card domain.CreditCard) error
}

// MemoryFinder keeps the catalog in memory and scans it on every match.
type MemoryFinder struct {
	mu    sync.RWMutex
	cards map[string]domain.CreditCard
	order []string
}

// NewMemoryFinder creates an empty in-memory catalog.
func NewMemoryFinder() *MemoryFinder {
	return &MemoryFinder{cards: make(map[string]domain.CreditCard)}
}

// Upsert adds or replaces a card.
func (f *MemoryFinder) Upsert(_ context.Context, card domain.CreditCard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cards[card.ID]; !ok {
		f.order = append(f.order, card.ID)
	}
	card.Embedding = append([]float32(nil), card.Embedding...)
	f.cards[card.ID] = card
	return nil
}

// Len returns the number of cards in the catalog.
func (f *MemoryFinder) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cards)
}

// Match implements Finder.
func (f *MemoryFinder) Match(_ context.Context, embedding []float32, threshold float64, limit int) ([]domain.CreditCard, error) {
	if limit <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	matches := make([]domain.CreditCard, 0, len(f.cards))
	for _, id := range f.order {
		card := f.cards[id]
		sim := cosine(embedding, card.Embedding)
		if sim <= threshold {
			continue
		}
		card.Similarity = sim
		card.Embedding = nil
		matches = append(matches, card)
	}
	f.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// cosine returns 0 for empty or mismatched vectors.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Catalog = (*MemoryFinder)(nil)
