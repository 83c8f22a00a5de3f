package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/RichardoC/agent-platform/internal/chat"
	"github.com/RichardoC/agent-platform/internal/db"
	"github.com/RichardoC/agent-platform/internal/models"
	"go.uber.org/zap"
)

type Handler struct {
	db     *db.Database
	chat   *chat.Service
	logger *zap.Logger
}

func NewHandler(database *db.Database, chatService *chat.Service, logger *zap.Logger) *Handler {
	return &Handler{
		db:     database,
		chat:   chatService,
		logger: logger,
	}
}

// Routes registers every API endpoint on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/agents", h.CreateAgent)
	mux.HandleFunc("GET /api/agents", h.GetAgents)
	mux.HandleFunc("GET /api/agents/{id}", h.GetAgent)
	mux.HandleFunc("PUT /api/agents/{id}", h.UpdateAgent)
	mux.HandleFunc("DELETE /api/agents/{id}", h.DeleteAgent)
	mux.HandleFunc("GET /api/agents/{id}/token-usage", h.GetAgentTokenUsage)

	mux.HandleFunc("POST /api/agents/{id}/conversations", h.CreateConversation)
	mux.HandleFunc("GET /api/agents/{id}/conversations", h.GetConversations)
	mux.HandleFunc("GET /api/conversations/{id}", h.GetConversation)
	mux.HandleFunc("PUT /api/conversations/{id}", h.UpdateConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.DeleteConversation)

	mux.HandleFunc("POST /api/conversations/{id}/messages", h.SendMessage)
	mux.HandleFunc("GET /api/conversations/{id}/messages", h.GetMessages)
	mux.HandleFunc("GET /api/conversations/{id}/token-usage", h.GetConversationTokenUsage)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

type CreateAgentRequest struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	Description  string `json:"description"`
}

type UpdateAgentRequest struct {
	Name         *string `json:"name"`
	SystemPrompt *string `json:"system_prompt"`
	Description  *string `json:"description"`
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type UpdateConversationRequest struct {
	Title string `json:"title"`
}

type MessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse pairs the stored exchange with the token usage
// recorded for the LLM call.
type SendMessageResponse struct {
	UserMessage      *models.Message    `json:"user_message"`
	AssistantMessage *models.Message    `json:"assistant_message"`
	TokenUsage       *models.TokenUsage `json:"token_usage"`
}

func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "agent name must not be empty")
		return
	}
	if req.SystemPrompt == "" {
		req.SystemPrompt = chat.DefaultSystemPrompt
	}

	agent, err := h.db.CreateAgent(req.Name, req.SystemPrompt, req.Description)
	if err != nil {
		h.logger.Error("Failed to create agent", zap.Error(err))
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, agent)
}

func (h *Handler) GetAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.db.GetAgents()
	if err != nil {
		h.logger.Error("Failed to get agents", zap.Error(err))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid agent id")
		return
	}

	agent, err := h.db.GetAgent(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *Handler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid agent id")
		return
	}

	var req UpdateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "agent name must not be empty")
		return
	}

	agent, err := h.db.UpdateAgent(id, req.Name, req.SystemPrompt, req.Description)
	if err != nil {
		h.logger.Error("Failed to update agent", zap.Error(err), zap.Int64("agent_id", id))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (h *Handler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid agent id")
		return
	}

	if err := h.db.DeleteAgent(id); err != nil {
		h.logger.Error("Failed to delete agent", zap.Error(err), zap.Int64("agent_id", id))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) GetAgentTokenUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid agent id")
		return
	}

	if _, err := h.db.GetAgent(id); err != nil {
		writeDomainError(w, err)
		return
	}

	total, err := h.db.TotalTokensByAgent(id)
	if err != nil {
		h.logger.Error("Failed to get agent token usage", zap.Error(err), zap.Int64("agent_id", id))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"agent_id": id, "total_tokens": total})
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid agent id")
		return
	}

	// An empty body means an untitled conversation.
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid request body")
		return
	}

	if _, err := h.db.GetAgent(agentID); err != nil {
		writeDomainError(w, err)
		return
	}

	conv, err := h.db.CreateConversation(agentID, req.Title)
	if err != nil {
		h.logger.Error("Failed to create conversation", zap.Error(err), zap.Int64("agent_id", agentID))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	agentID, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid agent id")
		return
	}

	if _, err := h.db.GetAgent(agentID); err != nil {
		writeDomainError(w, err)
		return
	}

	conversations, err := h.db.GetConversationsByAgent(agentID)
	if err != nil {
		h.logger.Error("Failed to get conversations", zap.Error(err), zap.Int64("agent_id", agentID))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid conversation id")
		return
	}

	conv, err := h.db.GetConversation(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) UpdateConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid conversation id")
		return
	}

	var req UpdateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid request body")
		return
	}

	if err := h.db.UpdateConversationTitle(id, req.Title); err != nil {
		h.logger.Error("Failed to update conversation", zap.Error(err), zap.Int64("conversation_id", id))
		writeDomainError(w, err)
		return
	}

	conv, err := h.db.GetConversation(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid conversation id")
		return
	}

	if err := h.db.DeleteConversation(id); err != nil {
		h.logger.Error("Failed to delete conversation", zap.Error(err), zap.Int64("conversation_id", id))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid conversation id")
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "message content must not be empty")
		return
	}

	userMsg, assistantMsg, err := h.chat.SendMessage(r.Context(), id, req.Content)
	if err != nil {
		h.logger.Error("Failed to send message", zap.Error(err), zap.Int64("conversation_id", id))
		writeDomainError(w, err)
		return
	}

	// Latest usage record belongs to this exchange.
	records, err := h.db.GetTokenUsageByConversation(id)
	if err != nil {
		h.logger.Error("Failed to load token usage", zap.Error(err), zap.Int64("conversation_id", id))
		writeDomainError(w, err)
		return
	}
	var usage *models.TokenUsage
	if len(records) > 0 {
		usage = &records[len(records)-1]
	}

	writeJSON(w, http.StatusCreated, SendMessageResponse{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		TokenUsage:       usage,
	})
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid conversation id")
		return
	}

	messages, err := h.chat.GetMessages(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *Handler) GetConversationTokenUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid conversation id")
		return
	}

	usage, err := h.chat.TokenUsage(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
