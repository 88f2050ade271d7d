package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/credpilot/internal/cards"
	"github.com/ashureev/credpilot/internal/domain"
	"github.com/ashureev/credpilot/internal/llm"
	"github.com/ashureev/credpilot/internal/store"
	"github.com/google/uuid"
)

// FallbackReply is stored when the model answers with nothing.
const FallbackReply = "Unable to provide a response at the moment."

// promptLoanLimit caps how many loans are embedded in prompts.
const promptLoanLimit = 5

var (
	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("message is required")
	// ErrCompletion wraps failures of the completion or recommendation call.
	ErrCompletion = errors.New("completion failed")
)

// CardRecommender answers credit-card questions.
type CardRecommender interface {
	Recommend(ctx context.Context, query string) (string, error)
}

// Exchange is the pair of messages produced by one Send.
type Exchange struct {
	SessionID        string              `json:"session_id"`
	UserMessage      *domain.ChatMessage `json:"user_message"`
	AssistantMessage *domain.ChatMessage `json:"assistant_message"`
}

// Service persists conversations and produces assistant replies.
type Service struct {
	repo   store.Repository
	llm    llm.Completer
	cards  CardRecommender
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a chat service. recommender may be nil, in which case
// card questions go through the regular completion path.
func NewService(repo store.Repository, completer llm.Completer, recommender CardRecommender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		llm:    completer,
		cards:  recommender,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Send runs one exchange on conv: it creates the session on first use,
// stores the user message, asks the model and stores the reply.
// The user message is kept even when the completion fails. If conv's
// session was deleted in the meantime, a fresh session is started.
func (s *Service) Send(ctx context.Context, conv *Conversation, message string) (*Exchange, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	if conv.SessionID != "" {
		_, err := s.repo.GetSession(ctx, conv.SessionID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.logger.Info("Chat session no longer exists, starting a new one",
				"user_id", conv.UserID,
				"session_id", conv.SessionID,
			)
			conv.Reset()
		case err != nil:
			return nil, fmt.Errorf("load session: %w", err)
		}
	}

	if conv.SessionID == "" {
		session := &domain.ChatSession{
			ID:        s.newID(),
			Title:     domain.SessionTitle(message),
			UserID:    conv.UserID,
			CreatedAt: s.now(),
		}
		if err := s.repo.CreateSession(ctx, session); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		conv.SessionID = session.ID
		s.logger.Info("Chat session created", "user_id", conv.UserID, "session_id", session.ID)
	}

	history := append([]string(nil), conv.Context...)

	userMsg := s.message(conv, domain.RoleUser, message)
	if err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}
	conv.record(domain.RoleUser, message)
	conv.Context = append(conv.Context, message)

	reply, err := s.reply(ctx, conv, history, message)
	if err != nil {
		s.logger.Error("Chat completion failed",
			"user_id", conv.UserID,
			"session_id", conv.SessionID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	assistantMsg := s.message(conv, domain.RoleAssistant, reply)
	if err := s.repo.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}
	conv.record(domain.RoleAssistant, reply)
	conv.Context = append(conv.Context, reply)

	return &Exchange{
		SessionID:        conv.SessionID,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
	}, nil
}

func (s *Service) reply(ctx context.Context, conv *Conversation, history []string, message string) (string, error) {
	if s.cards != nil && cards.IsCardQuery(message) {
		s.logger.Debug("Routing to card recommender", "session_id", conv.SessionID)
		return s.cards.Recommend(ctx, message)
	}
	prompt, err := BuildPrompt(conv, history, message)
	if err != nil {
		return "", err
	}
	return s.llm.Complete(ctx, prompt)
}

func (s *Service) message(conv *Conversation, role domain.Role, content string) *domain.ChatMessage {
	return &domain.ChatMessage{
		ID:        s.newID(),
		SessionID: conv.SessionID,
		UserID:    conv.UserID,
		Role:      role,
		Content:   content,
		CreatedAt: s.now(),
	}
}

// Resume rebuilds a conversation from a stored session owned by userID.
func (s *Service) Resume(ctx context.Context, userID, sessionID string, profile domain.CreditProfile) (*Conversation, error) {
	msgs, err := s.Messages(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	conv := NewConversation(userID, profile)
	conv.SessionID = sessionID
	for _, m := range msgs {
		conv.record(m.Role, m.Content)
		conv.Context = append(conv.Context, m.Content)
	}
	return conv, nil
}

// History returns the user's sessions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*domain.ChatSession, error) {
	sessions, err := s.repo.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*domain.ChatSession{}
	}
	return sessions, nil
}

// Messages returns a session's messages, oldest first. Sessions owned by
// someone else are reported as store.ErrNotFound.
func (s *Service) Messages(ctx context.Context, userID, sessionID string) ([]*domain.ChatMessage, error) {
	if err := s.authorize(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*domain.ChatMessage{}
	}
	return msgs, nil
}

// Delete removes a session and its messages.
func (s *Service) Delete(ctx context.Context, userID, sessionID string) error {
	if err := s.authorize(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	s.logger.Info("Chat session deleted", "user_id", userID, "session_id", sessionID)
	return nil
}

func (s *Service) authorize(ctx context.Context, userID, sessionID string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return store.ErrNotFound
	}
	return nil
}

// BuildPrompt renders the advisory prompt for message given the prior
// context of the conversation.
func BuildPrompt(conv *Conversation, history []string, message string) (llm.Prompt, error) {
	profileJSON, err := json.Marshal(conv.Profile.ForPrompt(promptLoanLimit))
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("marshal credit profile: %w", err)
	}
	personaJSON, err := json.Marshal(conv.Persona)
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("marshal persona: %w", err)
	}
	if history == nil {
		history = []string{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return llm.Prompt{}, fmt.Errorf("marshal chat history: %w", err)
	}

	system := fmt.Sprintf(`You are a helpful financial advisor.
Provide clear, concise advice based on best financial practices.
Format your responses using markdown for better readability. Use bullet points and headers where appropriate.
Never encourage vulgar, explicit, or inappropriate behavior.
User's credit profile: %s
User's persona: %s
Chat history: %s`, profileJSON, personaJSON, historyJSON)

	user := fmt.Sprintf(`Please consider the persona and credit profile above when answering the user's question.
User's query: %s
Based on the chat history, give the best possible advice to the user.`, message)

	return llm.Prompt{System: system, User: user}, nil
}
