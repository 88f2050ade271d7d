package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/llm"
	"github.com/ashureev/credpilot/internal/persona"
)

// promptLoanLimit caps how many loans are embedded in prompts.
const promptLoanLimit = 5

// Result is the outcome of a generation request.
type Result struct {
	Persona   persona.Persona `json:"persona"`
	Questions []string        `json:"questions"`
	Degraded  bool            `json:"degraded"`
}

// Generator asks the model for suggested questions.
type Generator struct {
	llm    llm.Completer
	parser Parser
	logger *slog.Logger
}

// NewGenerator creates a question generator.
func NewGenerator(completer llm.Completer, parser Parser, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: completer, parser: parser, logger: logger}
}

// Generate classifies the profile, requests questions and parses them.
// Completion and parse failures are returned to the caller.
func (g *Generator) Generate(ctx context.Context, profile domain.CreditProfile) (Result, error) {
	p := persona.ForProfile(profile)
	res := Result{Persona: p}

	prompt, err := BuildPrompt(profile, p)
	if err != nil {
		return res, err
	}

	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return res, fmt.Errorf("generate questions: %w", err)
	}

	qs, err := g.parser.Parse(raw)
	if err != nil {
		g.logger.Warn("unparsable question response", "persona", p.ID, "response_length", len(raw))
		return res, err
	}
	res.Questions = qs
	return res, nil
}

// Suggest is Generate with failures degraded to the fallback set.
func (g *Generator) Suggest(ctx context.Context, profile domain.CreditProfile) Result {
	res, err := g.Generate(ctx, profile)
	if err != nil {
		g.logger.Error("question generation failed", "persona", res.Persona.ID, "error", err)
		res.Questions = Fallback()
		res.Degraded = true
	}
	return res
}

// BuildPrompt renders the question-generation prompt.
func BuildPrompt(profile domain.CreditProfile, p persona.Persona) (llm.Prompt, error) {
	profileJSON, err := json.Marshal(profile.ForPrompt(promptLoanLimit))
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("marshal credit profile: %w", err)
	}

	system := fmt.Sprintf(`You are an AI Financial Advisor. %s
Your goal is to %s.
Focus on these critical data points: %s.
Current user data: Credit Score: %s, FOIR: %s%%, Active Loans: %s`,
		p.Situation, orDefault(p.Goal, "provide helpful financial advice"), joinOr(p.CriticalDataPoints, "credit score, income, and expenses"),
		profile.CreditScore, profile.FOIR, profile.RunningLoans)

	user := fmt.Sprintf(`Generate 4 questions for %s based on the credit profile below, considering common user concerns.
The questions are written from the user's point of view, so the user knows what they can ask an AI advisor to continue the conversation.
Keep the questions short and generalized.
Respond with a JSON array of exactly 4 strings and nothing else.
Do not use markdown or code blocks. Do not add any introduction, commentary or closing text.
User's credit profile: %s`, p.Situation, profileJSON)

	return llm.Prompt{System: system, User: user}, nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
