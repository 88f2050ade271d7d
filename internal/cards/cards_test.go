package cards

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/llm"
)

func TestIsCardQuery(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Which card should I get?", true},
		{"Recommend a card for travel", true},
		{"What are the best CREDIT CARDS for me", true},
		{"Any card suggestions?", true},
		{"How do I lower my EMI?", false},
		{"Tell me about my credit score", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsCardQuery(tt.text); got != tt.want {
			t.Errorf("IsCardQuery(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestMemoryFinderOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFinder()
	cards := []domain.CreditCard{
		{ID: "exact", CardName: "Exact", Embedding: []float32{1, 0, 0}},
		{ID: "close", CardName: "Close", Embedding: []float32{0.9, 0.1, 0}},
		{ID: "half", CardName: "Half", Embedding: []float32{1, 1, 0}},
		{ID: "orthogonal", CardName: "Orthogonal", Embedding: []float32{0, 0, 1}},
		{ID: "badsize", CardName: "BadSize", Embedding: []float32{1, 0}},
	}
	for _, c := range cards {
		if err := f.Upsert(ctx, c); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := f.Match(ctx, []float32{1, 0, 0}, 0.5, 3)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d: %+v", len(got), got)
	}
	for i, want := range []string{"exact", "close", "half"} {
		if got[i].ID != want {
			t.Errorf("match %d: expected %s, got %s", i, want, got[i].ID)
		}
		if got[i].Embedding != nil {
			t.Errorf("match %d: expected embedding to be stripped", i)
		}
	}
	if got[0].Similarity < 0.999 {
		t.Errorf("expected exact similarity ~1, got %f", got[0].Similarity)
	}

	got, err = f.Match(ctx, []float32{1, 0, 0}, 0.8, 3)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected threshold to drop the 45 degree card, got %+v", got)
	}
}

func TestMemoryFinderUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	f := NewMemoryFinder()
	_ = f.Upsert(ctx, domain.CreditCard{ID: "a", CardName: "Old", Embedding: []float32{1}})
	_ = f.Upsert(ctx, domain.CreditCard{ID: "a", CardName: "New", Embedding: []float32{1}})

	if f.Len() != 1 {
		t.Fatalf("expected 1 card, got %d", f.Len())
	}
	got, _ := f.Match(ctx, []float32{1}, 0, 5)
	if len(got) != 1 || got[0].CardName != "New" {
		t.Fatalf("expected replaced card, got %+v", got)
	}
}

func TestSeedEmbedsMissingVectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	data := `[
		{"id":"travel","card_name":"Voyager","bank_name":"Axis","annual_fee":"Rs 3000","features":"airport lounge travel miles"},
		{"id":"given","card_name":"Given","bank_name":"HDFC","embedding":[0.5,0.5]}
	]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	f := NewMemoryFinder()
	n, err := Seed(context.Background(), f, llm.NewMock(), path)
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n != 2 || f.Len() != 2 {
		t.Fatalf("expected 2 seeded cards, got n=%d len=%d", n, f.Len())
	}
}

func TestSeedWithoutEmbedder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.json")
	if err := os.WriteFile(path, []byte(`[{"id":"x","card_name":"X"}]`), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := Seed(context.Background(), NewMemoryFinder(), nil, path); err == nil {
		t.Fatal("expected error when a card needs embedding and no embedder is set")
	}
}

func TestRecommendBuildsPromptFromMatches(t *testing.T) {
	ctx := context.Background()
	mock := llm.NewMock()
	mock.Reply = func(llm.Prompt) (string, error) { return "Take the Voyager card.", nil }

	f := NewMemoryFinder()
	vec, _ := mock.Embed(ctx, "travel card with lounge access")
	_ = f.Upsert(ctx, domain.CreditCard{
		ID: "travel", CardName: "Voyager", BankName: "Axis", AnnualFee: "Rs 3000",
		Features: "lounge access", Embedding: vec,
	})

	r := NewRecommender(mock, f, mock, DefaultThreshold, DefaultLimit, nil)
	got, err := r.Recommend(ctx, "travel card with lounge access")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if got != "Take the Voyager card." {
		t.Errorf("unexpected recommendation %q", got)
	}

	prompts := mock.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0].User, "Voyager from Axis: Annual fee: Rs 3000, Features: lounge access") {
		t.Errorf("prompt is missing card context: %s", prompts[0].User)
	}
	if !strings.Contains(prompts[0].User, "under 150 words") {
		t.Errorf("prompt is missing length instruction: %s", prompts[0].User)
	}
}

func TestRecommendEmptyReply(t *testing.T) {
	mock := llm.NewMock()
	mock.Reply = func(llm.Prompt) (string, error) { return "  ", nil }

	r := NewRecommender(mock, NewMemoryFinder(), mock, DefaultThreshold, 0, nil)
	got, err := r.Recommend(context.Background(), "best card")
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if got != ApologyMessage {
		t.Errorf("expected apology, got %q", got)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func TestRecommendEmbeddingFailure(t *testing.T) {
	mock := llm.NewMock()
	r := NewRecommender(failingEmbedder{}, NewMemoryFinder(), mock, DefaultThreshold, DefaultLimit, nil)
	if _, err := r.Recommend(context.Background(), "best card"); err == nil {
		t.Fatal("expected embedding error")
	}
	if len(mock.Prompts()) != 0 {
		t.Error("expected no completion call after embedding failure")
	}
}

func TestSeedBundledCatalog(t *testing.T) {
	ctx := context.Background()
	mock := llm.NewMock()
	f := NewMemoryFinder()
	n, err := Seed(ctx, f, mock, filepath.Join("..", "..", "data", "cards.json"))
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n == 0 || f.Len() != n {
		t.Fatalf("expected seeded cards, got n=%d len=%d", n, f.Len())
	}

	query, _ := mock.Embed(ctx, "travel card with points and lounge access")
	matches, err := f.Match(ctx, query, 0, 1)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "travel-rewards" {
		t.Fatalf("expected travel-rewards first, got %+v", matches)
	}
}
