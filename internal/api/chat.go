package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/matching"
	"github.com/lalith-99/pawmates/internal/middleware"
	"github.com/lalith-99/pawmates/internal/repository"
	"go.uber.org/zap"
)

// ChatHandler exposes the chat list, message history, and sending.
type ChatHandler struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	svc      *matching.Service
	logger   *zap.Logger
	devMode  bool
}

func NewChatHandler(
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	svc *matching.Service,
	devMode bool,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		chats:    chats,
		messages: messages,
		svc:      svc,
		logger:   logger,
		devMode:  devMode,
	}
}

// List handles GET /v1/chats
func (h *ChatHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	chats, err := h.chats.ListByUser(c.Request.Context(), userID)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to list chats", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"chats":   chats,
	})
}

// Get handles GET /v1/chats/:id?before=123&limit=50
//
// Fetching a chat marks its messages read for the caller (append-only
// receipts). Chats are 403 for non-participants — unlike pets, a chat id
// in the caller's hands already proves the chat exists, so there's no
// existence leak to avoid.
func (h *ChatHandler) Get(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var before int64
	if v := c.Query("before"); v != "" {
		before, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'before' parameter"})
			return
		}
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		if limit > 100 {
			limit = 100
		}
	}

	userID := middleware.GetUserID(c)

	chat, err := h.chats.GetByID(c.Request.Context(), chatID)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to get chat", err)
		return
	}
	if chat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this chat"})
		return
	}

	if err := h.messages.MarkChatRead(c.Request.Context(), chatID, userID); err != nil {
		// Receipts are best-effort; the history still loads.
		h.logger.Warn("failed to mark chat read", zap.Error(err))
	}

	messages, err := h.messages.ListByChat(c.Request.Context(), chatID, before, limit)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to list messages", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"chat":     chat,
		"messages": messages,
	})
}

type sendMessageRequest struct {
	Content     string   `json:"content" binding:"required"`
	Attachments []string `json:"attachments"`
}

// SendMessage handles POST /v1/chats/:id/messages
//
// This is the persistence path: the confirmed copy goes back to the
// sender, who then emits it over their own socket for the recipient's
// realtime view. The server does not fan the REST write out itself.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)

	chat, err := h.chats.GetByID(c.Request.Context(), chatID)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to get chat", err)
		return
	}
	if chat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this chat"})
		return
	}

	msg, err := h.messages.Create(c.Request.Context(), chatID, userID, req.Content, req.Attachments)
	if err != nil {
		serverError(c, h.logger, h.devMode, "failed to create message", err)
		return
	}

	if err := h.chats.SetLastMessage(c.Request.Context(), chatID, msg.ID); err != nil {
		// The message is durable; a stale last-message pointer just
		// misorders the chat list until the next send.
		h.logger.Warn("failed to update last message pointer", zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": msg,
	})
}

type forMatchRequest struct {
	MatchID uuid.UUID `json:"matchId" binding:"required"`
}

// ForMatch handles POST /v1/chats/for-match — fetch-or-create the chat
// for a confirmed match. Recovery path for clients that learned about a
// match from the REST list but never received the chat id.
func (h *ChatHandler) ForMatch(c *gin.Context) {
	var req forMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := middleware.GetUserID(c)
	chat, err := h.svc.EnsureChatForMatch(c.Request.Context(), userID, req.MatchID)
	if err != nil {
		if errors.Is(err, matching.ErrNoMatch) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no match found"})
			return
		}
		serverError(c, h.logger, h.devMode, "failed to get chat for match", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"chat":    chat,
	})
}
