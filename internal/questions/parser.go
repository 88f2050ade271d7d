// Package questions generates suggested follow-up questions for a persona.
package questions

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// MaxQuestions caps the number of suggestions returned.
const MaxQuestions = 4

// FallbackMessage is shown when no question could be extracted.
const FallbackMessage = "No questions could be extracted from the response."

// ErrUnparsable is returned when a model response carries no questions.
var ErrUnparsable = errors.New("questions: response is not a parseable question list")

var (
	quotedPattern   = regexp.MustCompile(`"(.*?)"`)
	numberedPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+(.+?)\s*$`)
	fencePattern    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Fallback returns the placeholder suggestion set.
func Fallback() []string {
	return []string{FallbackMessage}
}

// Parser extracts question strings from a completion.
type Parser struct {
	// Lenient enables question-object, numbered-list and quoted-string
	// extraction when the response is not a JSON array of strings.
	Lenient bool
}

// Parse returns up to MaxQuestions questions or ErrUnparsable.
func (p Parser) Parse(raw string) ([]string, error) {
	text := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	if qs, ok := parseJSONArray(text); ok {
		return finish(qs)
	}
	if !p.Lenient {
		return nil, ErrUnparsable
	}
	if qs, ok := parseJSONObjects(text); ok {
		return finish(qs)
	}
	// A numbered list may quote a term inside a question, so it wins
	// over quoted-string extraction when present.
	if qs := extractNumbered(text); len(qs) > 0 {
		return finish(qs)
	}
	if qs := extractQuoted(text); len(qs) > 0 {
		return finish(qs)
	}
	return nil, ErrUnparsable
}

// ParseOrFallback parses leniently and degrades to Fallback.
func ParseOrFallback(raw string) []string {
	qs, err := Parser{Lenient: true}.Parse(raw)
	if err != nil {
		return Fallback()
	}
	return qs
}

func parseJSONArray(text string) ([]string, bool) {
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}
	var qs []string
	if err := json.Unmarshal([]byte(text), &qs); err != nil {
		return nil, false
	}
	return qs, true
}

// parseJSONObjects accepts an array of {"question": "..."} objects.
func parseJSONObjects(text string) ([]string, bool) {
	if !strings.HasPrefix(text, "[") {
		return nil, false
	}
	var items []struct {
		Question string `json:"question"`
	}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	qs := make([]string, 0, len(items))
	for _, item := range items {
		qs = append(qs, item.Question)
	}
	return qs, true
}

// extractQuoted returns quoted strings, skipping object keys.
func extractQuoted(text string) []string {
	matches := quotedPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if rest := strings.TrimLeft(text[m[1]:], " \t"); strings.HasPrefix(rest, ":") {
			continue
		}
		out = append(out, text[m[2]:m[3]])
	}
	return out
}

func extractNumbered(text string) []string {
	matches := numberedPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func finish(qs []string) ([]string, error) {
	out := make([]string, 0, MaxQuestions)
	for _, q := range qs {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == MaxQuestions {
			break
		}
	}
	if len(out) == 0 {
		return nil, ErrUnparsable
	}
	return out, nil
}
