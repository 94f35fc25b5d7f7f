package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/marketchat/internal/middleware"
)

// Handlers groups everything RegisterRoutes mounts. Metrics may be nil.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Chat         *ChatHandler
	Notification *NotificationHandler
	Health       *HealthHandler
	Socket       gin.HandlerFunc
	Metrics      http.Handler
}

// RegisterRoutes mounts the public endpoints and the authenticated /v1
// group, socket handshake included.
func RegisterRoutes(r *gin.Engine, h Handlers, jwtSecret string) {
	r.GET("/v1/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	r.POST("/v1/auth/login", h.Auth.Login)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtSecret))

	v1.GET("/ws", h.Socket)

	v1.GET("/users/me", h.User.GetMe)
	v1.GET("/users/me/blocked", h.User.Blocked)

	chats := v1.Group("/chats")
	// Static segments win over :receiverId in gin's router.
	chats.GET("/mine", h.Chat.Mine)
	chats.GET("/:receiverId", h.Chat.History)
	chats.POST("", h.Chat.Create)
	chats.PUT("/:chatId/read", h.Chat.MarkRead)
	chats.POST("/block/:userId", h.Chat.Block)
	chats.POST("/unblock/:userId", h.Chat.Unblock)

	notes := v1.Group("/notification")
	notes.GET("", h.Notification.List)
	notes.POST("/send", h.Notification.Send)
	notes.PUT("/read", h.Notification.Read)
	notes.PUT("/markallread", h.Notification.MarkAllRead)
	notes.POST("/broadcast", h.Notification.Broadcast)
}
