package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/RichardoC/agent-platform/internal/db"
	"github.com/RichardoC/agent-platform/internal/llm"
	"github.com/RichardoC/agent-platform/internal/models"
	"go.uber.org/zap"
)

// DefaultSystemPrompt seeds agents created without one and stands in
// when a conversation's agent row has gone missing.
const DefaultSystemPrompt = "You are a helpful assistant."

// Completer is the slice of the LLM client the service needs; tests
// substitute a stub.
type Completer interface {
	Chat(ctx context.Context, history []llm.Message, systemPrompt string, opts ...llm.Option) (string, llm.Usage, error)
}

// Service ties conversation storage to the LLM client for the
// send-message flow. All collaborators are injected.
type Service struct {
	db     *db.Database
	llm    Completer
	model  string
	logger *zap.Logger
}

func NewService(database *db.Database, completer Completer, model string, logger *zap.Logger) *Service {
	return &Service{
		db:     database,
		llm:    completer,
		model:  model,
		logger: logger,
	}
}

// SendMessage stores the user message, sends the full conversation
// history to the LLM, and stores the reply with its token usage. The
// user message is committed before the LLM call and survives any LLM
// failure; on failure no assistant message or usage row is written.
func (s *Service) SendMessage(ctx context.Context, conversationID int64, content string) (*models.Message, *models.Message, error) {
	conv, err := s.db.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, fmt.Errorf("conversation %d: %w", conversationID, err)
		}
		return nil, nil, err
	}

	systemPrompt := DefaultSystemPrompt
	agent, err := s.db.GetAgent(conv.AgentID)
	switch {
	case err == nil:
		systemPrompt = agent.SystemPrompt
	case errors.Is(err, db.ErrNotFound):
		// Orphaned conversation; fall back to the default prompt rather
		// than refusing the message.
		s.logger.Warn("agent missing for conversation, using default prompt",
			zap.Int64("conversation_id", conversationID),
			zap.Int64("agent_id", conv.AgentID))
	default:
		return nil, nil, err
	}

	userMsg := &models.Message{
		ConvID:  conversationID,
		Role:    "user",
		Content: content,
	}
	if err := s.db.SaveMessage(userMsg); err != nil {
		return nil, nil, fmt.Errorf("failed to save user message: %w", err)
	}

	history, err := s.db.GetMessages(conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	msgContext := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msgContext = append(msgContext, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply, usage, err := s.llm.Chat(ctx, msgContext, systemPrompt)
	if err != nil {
		// The user message stays; the caller sees the LLM failure as is.
		return nil, nil, err
	}

	assistantMsg := &models.Message{
		ConvID:  conversationID,
		Role:    "assistant",
		Content: reply,
	}
	record := &models.TokenUsage{
		ConvID:           conversationID,
		Model:            s.model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}
	if err := s.db.SaveReply(assistantMsg, record); err != nil {
		return nil, nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	s.logger.Info("message exchange complete",
		zap.Int64("conversation_id", conversationID),
		zap.Int("total_tokens", usage.TotalTokens))

	return userMsg, assistantMsg, nil
}

// GetMessages returns the conversation's messages in chronological
// order, failing with db.ErrNotFound for an unknown conversation.
func (s *Service) GetMessages(conversationID int64) ([]models.Message, error) {
	if _, err := s.db.GetConversation(conversationID); err != nil {
		return nil, err
	}
	return s.db.GetMessages(conversationID)
}

// ConversationTokenUsage aggregates a conversation's token consumption.
type ConversationTokenUsage struct {
	ConversationID int64               `json:"conversation_id"`
	Title          string              `json:"title,omitempty"`
	TotalTokens    int64               `json:"total_tokens"`
	MessageCount   int64               `json:"message_count"`
	Records        []models.TokenUsage `json:"token_usage_records"`
}

func (s *Service) TokenUsage(conversationID int64) (*ConversationTokenUsage, error) {
	conv, err := s.db.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}

	records, err := s.db.GetTokenUsageByConversation(conversationID)
	if err != nil {
		return nil, err
	}
	total, err := s.db.TotalTokensByConversation(conversationID)
	if err != nil {
		return nil, err
	}
	count, err := s.db.CountMessages(conversationID)
	if err != nil {
		return nil, err
	}

	return &ConversationTokenUsage{
		ConversationID: conversationID,
		Title:          conv.Title,
		TotalTokens:    total,
		MessageCount:   count,
		Records:        records,
	}, nil
}
