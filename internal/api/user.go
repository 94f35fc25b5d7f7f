package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/middleware"
	"github.com/lalith-99/marketchat/internal/repository"
	"go.uber.org/zap"
)

// UserHandler serves the caller's own account and block list.
type UserHandler struct {
	users  repository.UserRepository
	blocks repository.BlockRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, blocks repository.BlockRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, blocks: blocks, logger: logger}
}

// GetMe handles GET /v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to get user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	// A valid token for a deleted account.
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// Blocked handles GET /v1/users/me/blocked
func (h *UserHandler) Blocked(c *gin.Context) {
	ids, err := h.blocks.ListBlocked(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list blocked users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blocked users"})
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	c.JSON(http.StatusOK, gin.H{"blocked_users": ids})
}
