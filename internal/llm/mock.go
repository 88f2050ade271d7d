package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// MockDimensions is the vector size produced by Mock.Embed.
const MockDimensions = 64

// Mock is an offline Completer and Embedder for development and tests.
type Mock struct {
	mu      sync.Mutex
	Reply   func(Prompt) (string, error)
	prompts []Prompt
}

// NewMock returns a mock that answers question-generation prompts with a
// JSON array and everything else with a short canned reply.
func NewMock() *Mock {
	return &Mock{Reply: defaultMockReply}
}

func defaultMockReply(p Prompt) (string, error) {
	if strings.Contains(p.User, "JSON array") {
		return `["How can I improve my credit score?","How do I lower my EMIs?","Should I consolidate my loans?","How can I reduce my credit utilization?"]`, nil
	}
	return "Keep your utilization under 30% and pay every EMI on time.", nil
}

// Complete records the prompt and returns the configured reply.
func (m *Mock) Complete(_ context.Context, prompt Prompt) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	reply := m.Reply
	m.mu.Unlock()
	if reply == nil {
		reply = defaultMockReply
	}
	return reply(prompt)
}

// Prompts returns every prompt received so far.
func (m *Mock) Prompts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.prompts...)
}

// Embed hashes lower-cased words into a fixed-size unit vector, so texts
// sharing words land close to each other.
func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, MockDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[h.Sum32()%MockDimensions]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

var (
	_ Completer = (*Mock)(nil)
	_ Embedder  = (*Mock)(nil)
)
