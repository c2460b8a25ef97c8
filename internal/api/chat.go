package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexvault/lexvault/internal/gemini"
	"github.com/lexvault/lexvault/internal/models"
	"github.com/lexvault/lexvault/internal/observability"
	"github.com/lexvault/lexvault/internal/repository"
	"github.com/lexvault/lexvault/internal/retrieval"
)

// ChatHandler handles the RAG chat endpoint and conversation history
type ChatHandler struct {
	conversations *repository.ConversationRepository
	assembler     *retrieval.ContextAssembler
	client        *gemini.Client
	matchCount    int
	citationMax   int
	historyLimit  int
	logger        observability.Logger
}

// NewChatHandler creates a new chat handler instance
func NewChatHandler(
	conversations *repository.ConversationRepository,
	assembler *retrieval.ContextAssembler,
	client *gemini.Client,
	matchCount, citationMax, historyLimit int,
	logger observability.Logger,
) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		assembler:     assembler,
		client:        client,
		matchCount:    matchCount,
		citationMax:   citationMax,
		historyLimit:  historyLimit,
		logger:        logger,
	}
}

// Chat handles POST /api/v1/chat. The question is grounded in the user's
// document chunks; prior turns of the conversation are replayed as history.
func (h *ChatHandler) Chat(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	var conv *models.Conversation
	var err error
	if req.ConversationID != nil {
		conv, err = h.conversations.GetConversation(ctx, *req.ConversationID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
				return
			}
			h.logger.Error("Failed to load conversation", map[string]interface{}{"error": err.Error()})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
			return
		}
	} else {
		conv, err = h.conversations.CreateConversation(ctx, userID, req.Message)
		if err != nil {
			h.logger.Error("Failed to create conversation", map[string]interface{}{"error": err.Error()})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
			return
		}
	}

	history, err := h.loadHistory(c, conv.ID)
	if err != nil {
		h.logger.Error("Failed to load history", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation history"})
		return
	}

	if _, err := h.conversations.CreateMessage(ctx, conv.ID, models.RoleUser, req.Message, nil); err != nil {
		h.logger.Error("Failed to save user message", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	rc, err := h.assembler.BuildContext(ctx, req.Message, userID, retrieval.Options{
		MatchCount:        h.matchCount,
		CitationMaxLength: h.citationMax,
	})
	if err != nil {
		h.logger.Error("Failed to build retrieval context", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to process question"})
		return
	}

	answer, err := h.client.ChatWithContext(ctx, req.Message, rc.FormattedText, history, "")
	if err != nil {
		h.logger.Error("Chat generation failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to generate answer"})
		return
	}

	if _, err := h.conversations.CreateMessage(ctx, conv.ID, models.RoleAssistant, answer, rc.Citations); err != nil {
		h.logger.Error("Failed to save assistant message", map[string]interface{}{"error": err.Error()})
	}
	if err := h.conversations.TouchConversation(ctx, conv.ID); err != nil {
		h.logger.Warn("Failed to touch conversation", map[string]interface{}{"error": err.Error()})
	}

	citations := rc.Citations
	if citations == nil {
		citations = []models.Citation{}
	}

	c.JSON(http.StatusOK, ChatResponse{
		ConversationID: conv.ID,
		Message:        answer,
		Citations:      citations,
	})
}

func (h *ChatHandler) loadHistory(c *gin.Context, conversationID uuid.UUID) ([]gemini.HistoryMessage, error) {
	msgs, err := h.conversations.GetMessages(c.Request.Context(), conversationID, h.historyLimit)
	if err != nil {
		return nil, err
	}

	history := make([]gemini.HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, gemini.HistoryMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return history, nil
}

// ListConversations handles GET /api/v1/conversations
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	convs, err := h.conversations.ListConversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list conversations", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
		"count":         len(convs),
	})
}

// DeleteConversation handles DELETE /api/v1/conversations/:id
func (h *ChatHandler) DeleteConversation(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	if err := h.conversations.DeleteConversation(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Error("Failed to delete conversation", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "conversation deleted"})
}

// GetMessages handles GET /api/v1/conversations/:id/messages
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation ID"})
		return
	}

	if _, err := h.conversations.GetConversation(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Error("Failed to load conversation", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	msgs, err := h.conversations.GetMessages(c.Request.Context(), id, h.historyLimit)
	if err != nil {
		h.logger.Error("Failed to load messages", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"count":    len(msgs),
	})
}
