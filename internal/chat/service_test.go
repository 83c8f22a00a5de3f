package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/RichardoC/agent-platform/internal/db"
	"github.com/RichardoC/agent-platform/internal/llm"
	"github.com/RichardoC/agent-platform/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCompleter struct {
	reply string
	usage llm.Usage
	err   error

	calls      int
	gotHistory []llm.Message
	gotPrompt  string
}

func (s *stubCompleter) Chat(ctx context.Context, history []llm.Message, systemPrompt string, opts ...llm.Option) (string, llm.Usage, error) {
	s.calls++
	s.gotHistory = history
	s.gotPrompt = systemPrompt
	if s.err != nil {
		return "", llm.Usage{}, s.err
	}
	return s.reply, s.usage, nil
}

func newTestService(t *testing.T, stub *stubCompleter) (*Service, *db.Database) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewService(database, stub, "test-model", zap.NewNop()), database
}

func seed(t *testing.T, database *db.Database, systemPrompt string) *models.Conversation {
	t.Helper()
	agent, err := database.CreateAgent("helper", systemPrompt, "")
	require.NoError(t, err)
	conv, err := database.CreateConversation(agent.ID, "chat")
	require.NoError(t, err)
	return conv
}

func TestSendMessage(t *testing.T) {
	stub := &stubCompleter{reply: "Hi there", usage: llm.Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5}}
	service, database := newTestService(t, stub)
	conv := seed(t, database, "Be friendly.")

	userMsg, assistantMsg, err := service.SendMessage(context.Background(), conv.ID, "Hello")
	require.NoError(t, err)

	assert.Equal(t, "user", userMsg.Role)
	assert.Equal(t, "Hello", userMsg.Content)
	assert.NotZero(t, userMsg.ID)
	assert.Equal(t, "assistant", assistantMsg.Role)
	assert.Equal(t, "Hi there", assistantMsg.Content)

	// The LLM saw the agent's prompt and the full history including the
	// just-stored user message.
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, "Be friendly.", stub.gotPrompt)
	require.Len(t, stub.gotHistory, 1)
	assert.Equal(t, llm.Message{Role: "user", Content: "Hello"}, stub.gotHistory[0])

	messages, err := service.GetMessages(conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Hello", messages[0].Content)
	assert.Equal(t, "Hi there", messages[1].Content)

	usage, err := service.TokenUsage(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.TotalTokens)
	assert.Equal(t, int64(2), usage.MessageCount)
	require.Len(t, usage.Records, 1)
	assert.Equal(t, "test-model", usage.Records[0].Model)
	assert.Equal(t, 2, usage.Records[0].PromptTokens)
	assert.Equal(t, 3, usage.Records[0].CompletionTokens)
}

func TestSendMessageBuildsFullContext(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	service, database := newTestService(t, stub)
	conv := seed(t, database, "p")

	_, _, err := service.SendMessage(context.Background(), conv.ID, "one")
	require.NoError(t, err)
	_, _, err = service.SendMessage(context.Background(), conv.ID, "two")
	require.NoError(t, err)

	// Second call context: user, assistant, user — in order, untruncated.
	require.Len(t, stub.gotHistory, 3)
	assert.Equal(t, "one", stub.gotHistory[0].Content)
	assert.Equal(t, "ok", stub.gotHistory[1].Content)
	assert.Equal(t, "two", stub.gotHistory[2].Content)
}

func TestSendMessageConversationNotFound(t *testing.T) {
	stub := &stubCompleter{reply: "never"}
	service, database := newTestService(t, stub)

	_, _, err := service.SendMessage(context.Background(), 12345, "Hello")
	assert.ErrorIs(t, err, db.ErrNotFound)
	assert.Zero(t, stub.calls, "LLM must not be called")

	count, err := database.CountMessages(12345)
	require.NoError(t, err)
	assert.Zero(t, count, "no rows written")
}

func TestSendMessageLLMFailureKeepsUserMessage(t *testing.T) {
	stub := &stubCompleter{err: &llm.APIError{StatusCode: 503, Message: "overloaded"}}
	service, database := newTestService(t, stub)
	conv := seed(t, database, "p")

	_, _, err := service.SendMessage(context.Background(), conv.ID, "Hello")
	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)

	// Exactly the user message survives; no assistant reply, no usage.
	messages, err := service.GetMessages(conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "Hello", messages[0].Content)

	usage, err := service.TokenUsage(conv.ID)
	require.NoError(t, err)
	assert.Zero(t, usage.TotalTokens)
	assert.Empty(t, usage.Records)
}

func TestSendMessageTimeoutPropagates(t *testing.T) {
	stub := &stubCompleter{err: llm.ErrTimeout}
	service, database := newTestService(t, stub)
	conv := seed(t, database, "p")

	_, _, err := service.SendMessage(context.Background(), conv.ID, "Hello")
	assert.ErrorIs(t, err, llm.ErrTimeout)

	messages, err := service.GetMessages(conv.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestGetMessagesConversationNotFound(t *testing.T) {
	service, _ := newTestService(t, &stubCompleter{})
	_, err := service.GetMessages(999)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestTokenUsageConversationNotFound(t *testing.T) {
	service, _ := newTestService(t, &stubCompleter{})
	_, err := service.TokenUsage(999)
	assert.ErrorIs(t, err, db.ErrNotFound)
}
