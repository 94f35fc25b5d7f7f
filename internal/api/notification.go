package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/middleware"
	"github.com/lalith-99/marketchat/internal/notify"
	"github.com/lalith-99/marketchat/internal/repository"
	"go.uber.org/zap"
)

// PushSender is the push-only path of the dispatcher.
type PushSender interface {
	SendToSelf(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error
}

// Enqueuer schedules a broadcast to every registered device.
type Enqueuer interface {
	EnqueueBroadcast(ctx context.Context, in notify.BroadcastInput) (string, error)
}

type NotificationHandler struct {
	push          PushSender
	notifications repository.NotificationRepository
	queue         Enqueuer
	admins        map[uuid.UUID]struct{}
	logger        *zap.Logger
}

func NewNotificationHandler(
	push PushSender,
	notifications repository.NotificationRepository,
	queue Enqueuer,
	admins []uuid.UUID,
	logger *zap.Logger,
) *NotificationHandler {
	set := make(map[uuid.UUID]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &NotificationHandler{
		push:          push,
		notifications: notifications,
		queue:         queue,
		admins:        set,
		logger:        logger,
	}
}

type pushRequest struct {
	Title string            `json:"title" binding:"required"`
	Body  string            `json:"body" binding:"required"`
	Data  map[string]string `json:"data"`
}

type readRequest struct {
	NotificationID string `json:"notificationId" binding:"required"`
}

// Send handles POST /v1/notification/send
//
// Pushes to the caller's own device. Nothing is written to the
// notification center; this is how clients test their push setup.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.push.SendToSelf(c.Request.Context(), middleware.GetUserID(c), req.Title, req.Body, req.Data)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "notification sent"})
	case errors.Is(err, notify.ErrNoPushToken), errors.Is(err, notify.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no push token registered"})
	case errors.Is(err, notify.ErrMissingParams):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Warn("push to self failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "push provider rejected the notification"})
	}
}

// List handles GET /v1/notification. Unread only, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.notifications.ListUnread(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to list notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// Read handles PUT /v1/notification/read
func (h *NotificationHandler) Read(c *gin.Context) {
	var req readRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := uuid.Parse(req.NotificationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification ID"})
		return
	}

	err = h.notifications.MarkRead(c.Request.Context(), middleware.GetUserID(c), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notification"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}

// MarkAllRead handles PUT /v1/notification/markallread
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("failed to mark all notifications read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notifications"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Broadcast handles POST /v1/notification/broadcast (admins only).
// The job runs in the background; the response only confirms it was queued.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	if _, ok := h.admins[middleware.GetUserID(c)]; !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "broadcast not allowed"})
		return
	}

	var req notify.BroadcastInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" || req.Body == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}

	jobID, err := h.queue.EnqueueBroadcast(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("failed to enqueue broadcast", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue broadcast"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}
