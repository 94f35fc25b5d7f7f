package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/chat"
	"github.com/lalith-99/marketchat/internal/contract"
	"github.com/lalith-99/marketchat/internal/middleware"
	"github.com/lalith-99/marketchat/internal/repository"
	"go.uber.org/zap"
)

type ChatHandler struct {
	router *chat.Router
	blocks repository.BlockRepository
	logger *zap.Logger
}

func NewChatHandler(router *chat.Router, blocks repository.BlockRepository, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{router: router, blocks: blocks, logger: logger}
}

// History handles GET /v1/chats/:receiverId
//
// Every message between the caller and receiverId, oldest first, with
// sender/receiver/product display fields attached.
func (h *ChatHandler) History(c *gin.Context) {
	otherID, err := uuid.Parse(c.Param("receiverId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver ID"})
		return
	}

	chats, err := h.router.Conversation(c.Request.Context(), middleware.GetUserID(c), otherID)
	if err != nil {
		h.logger.Error("failed to list conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// Mine handles GET /v1/chats/mine
func (h *ChatHandler) Mine(c *gin.Context) {
	partners, err := h.router.Partners(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list chat partners", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": partners})
}

// Create handles POST /v1/chats
//
// REST fallback for clients without a socket: the message is stored but
// nobody is pushed in real time. A blocked sender gets 202 and nothing is
// stored, so the response does not reveal the block.
func (h *ChatHandler) Create(c *gin.Context) {
	var req contract.SendMessagePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ReceiverUser == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver ID is required"})
		return
	}
	req.SenderUser = middleware.GetUserID(c).String()

	in, err := chat.ParseSend(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.router.Persist(c.Request.Context(), in)
	if errors.Is(err, chat.ErrBlocked) {
		h.logger.Debug("message dropped, sender blocked",
			zap.String("sender_id", in.SenderID.String()),
			zap.String("receiver_id", in.ReceiverID.String()),
		)
		c.JSON(http.StatusAccepted, gin.H{"message": "message accepted"})
		return
	}
	if err != nil {
		h.logger.Error("failed to create message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": msg})
}

// MarkRead handles PUT /v1/chats/:chatId/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat ID"})
		return
	}

	msg, err := h.router.MarkRead(c.Request.Context(), middleware.GetUserID(c), chatID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to mark message read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": msg})
}

// Block handles POST /v1/chats/block/:userId. Blocking twice is fine.
func (h *ChatHandler) Block(c *gin.Context) {
	targetID, ok := h.blockTarget(c)
	if !ok {
		return
	}
	if err := h.blocks.Block(c.Request.Context(), middleware.GetUserID(c), targetID); err != nil {
		h.logger.Error("failed to block user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to block user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user blocked"})
}

// Unblock handles POST /v1/chats/unblock/:userId
func (h *ChatHandler) Unblock(c *gin.Context) {
	targetID, ok := h.blockTarget(c)
	if !ok {
		return
	}
	if err := h.blocks.Unblock(c.Request.Context(), middleware.GetUserID(c), targetID); err != nil {
		h.logger.Error("failed to unblock user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unblock user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user unblocked"})
}

func (h *ChatHandler) blockTarget(c *gin.Context) (uuid.UUID, bool) {
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return uuid.Nil, false
	}
	if targetID == middleware.GetUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot block yourself"})
		return uuid.Nil, false
	}
	return targetID, true
}
