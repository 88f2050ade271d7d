package questions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/llm"
	"github.com/ashureev/credpilot/internal/persona"
)

func TestGenerateUsesPersonaAndProfile(t *testing.T) {
	mock := llm.NewMock()
	gen := NewGenerator(mock, Parser{}, nil)

	res, err := gen.Generate(context.Background(), domain.FallbackCreditProfile())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Persona.ID != persona.Persona3 {
		t.Errorf("expected Persona 3 for fallback profile, got %q", res.Persona.ID)
	}
	if len(res.Questions) != 4 {
		t.Errorf("expected 4 questions, got %d", len(res.Questions))
	}

	prompts := mock.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("expected one prompt, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0].User, res.Persona.Situation) {
		t.Error("expected persona situation in prompt")
	}
	if !strings.Contains(prompts[0].User, `"credit_score":"735"`) {
		t.Error("expected profile JSON in prompt")
	}
}

func TestGenerateSurfacesParseError(t *testing.T) {
	mock := &llm.Mock{Reply: func(llm.Prompt) (string, error) {
		return "Sure! Here are four great questions.", nil
	}}
	gen := NewGenerator(mock, Parser{}, nil)

	_, err := gen.Generate(context.Background(), domain.FallbackCreditProfile())
	if !errors.Is(err, ErrUnparsable) {
		t.Fatalf("expected ErrUnparsable, got %v", err)
	}
}

func TestSuggestDegradesOnFailure(t *testing.T) {
	mock := &llm.Mock{Reply: func(llm.Prompt) (string, error) {
		return "", errors.New("network down")
	}}
	gen := NewGenerator(mock, Parser{}, nil)

	res := gen.Suggest(context.Background(), domain.CreditProfile{CreditScore: "820"})
	if !res.Degraded {
		t.Fatal("expected degraded result")
	}
	if len(res.Questions) != 1 || res.Questions[0] != FallbackMessage {
		t.Fatalf("expected fallback questions, got %q", res.Questions)
	}
	if res.Persona.ID != persona.Persona6 {
		t.Errorf("expected persona to be reported even on failure, got %q", res.Persona.ID)
	}
}

func TestBuildPromptCapsLoans(t *testing.T) {
	p := domain.FallbackCreditProfile()
	for i := 0; i < 7; i++ {
		p.LoanList = append(p.LoanList, []byte(`{"lender":"bank"}`))
	}
	prompt, err := BuildPrompt(p, persona.ForProfile(p))
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}
	if n := strings.Count(prompt.User, `"lender"`); n != 5 {
		t.Errorf("expected 5 loans in prompt, got %d", n)
	}
}
