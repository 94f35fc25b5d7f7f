// Package realtime serves the chat websocket: it upgrades authenticated
// requests, announces users to the presence registry and hands inbound
// events to the delivery router.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/marketchat/internal/chat"
	"github.com/lalith-99/marketchat/internal/contract"
	"github.com/lalith-99/marketchat/internal/middleware"
	"github.com/lalith-99/marketchat/internal/presence"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Gateway struct {
	registry *presence.Registry
	router   *chat.Router
	logger   *zap.Logger

	upgrader     websocket.Upgrader
	eventTimeout time.Duration
	sendQueue    int
	rateEvents   int
	rateWindow   time.Duration
}

type Option func(*Gateway)

func WithEventTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.eventTimeout = d
		}
	}
}

func WithSendQueue(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.sendQueue = n
		}
	}
}

func WithRateLimit(events int, window time.Duration) Option {
	return func(g *Gateway) {
		g.rateEvents, g.rateWindow = events, window
	}
}

// WithAllowedOrigins restricts the Origin header on upgrade. Empty or "*"
// allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(g *Gateway) {
		if len(origins) == 0 || slices.Contains(origins, "*") {
			return
		}
		g.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, origin)
		}
	}
}

func NewGateway(registry *presence.Registry, router *chat.Router, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		registry: registry,
		router:   router,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		eventTimeout: defaultEventTimeout,
		sendQueue:    defaultSendQueue,
		rateEvents:   rateLimitEvents,
		rateWindow:   rateLimitWindow,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// session is the per-connection state of the read loop.
type session struct {
	conn    *Connection
	userID  uuid.UUID
	joined  bool
	limiter *rate.Limiter
}

// Handle upgrades the request and runs the read loop until the client goes
// away. It must sit behind middleware.AuthMiddleware.
func (g *Gateway) Handle(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(userID, ws, g.sendQueue)
	conn.Start()

	s := &session{
		conn:    conn,
		userID:  userID,
		limiter: newRateLimiter(g.rateEvents, g.rateWindow),
	}
	defer g.disconnect(s)

	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	_ = conn.Emit(contract.EventConnected, gin.H{"userId": userID.String()})
	g.logger.Debug("websocket connected",
		zap.String("user_id", userID.String()),
		zap.String("conn_id", conn.ID),
	)

	ctx := c.Request.Context()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				g.logger.Debug("websocket read failed", zap.String("conn_id", conn.ID), zap.Error(err))
			}
			return
		}

		if !s.limiter.Allow() {
			g.sendError(conn, contract.CodeRateLimited, "too many events")
			conn.Close(websocket.ClosePolicyViolation, "rate limited")
			return
		}

		var frame contract.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.sendError(conn, contract.CodeBadFrame, "invalid JSON")
			continue
		}
		if err := frame.Validate(); err != nil {
			g.sendError(conn, contract.CodeBadFrame, err.Error())
			continue
		}

		g.dispatch(ctx, s, frame)
	}
}

func (g *Gateway) dispatch(parent context.Context, s *session, frame contract.Frame) {
	ctx, cancel := context.WithTimeout(parent, g.eventTimeout)
	defer cancel()

	switch frame.Event {
	case contract.EventJoinChat:
		g.onJoin(s, frame.Data)
	case contract.EventSendMessage:
		g.onSend(ctx, s, frame.Data)
	case contract.EventMessageDelivered:
		g.onDelivered(ctx, s, frame.Data)
	}
}

// onJoin announces the socket's user. The payload is the user id as a JSON
// string and must be the authenticated user.
func (g *Gateway) onJoin(s *session, data json.RawMessage) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		g.sendError(s.conn, contract.CodeBadFrame, "joinChat expects a user id")
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		g.sendError(s.conn, contract.CodeBadFrame, "joinChat expects a user id")
		return
	}
	if id != s.userID {
		g.sendError(s.conn, contract.CodeForbidden, "cannot join as another user")
		return
	}

	g.registry.Register(s.userID, s.conn)
	s.joined = true
	g.logger.Debug("user joined", zap.String("user_id", s.userID.String()), zap.String("conn_id", s.conn.ID))
}

func (g *Gateway) onSend(ctx context.Context, s *session, data json.RawMessage) {
	var p contract.SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(s.conn, contract.CodeBadFrame, "invalid sendMessage payload")
		return
	}
	if p.SenderUser != "" && p.SenderUser != s.userID.String() {
		g.sendError(s.conn, contract.CodeForbidden, "cannot send as another user")
		return
	}
	p.SenderUser = s.userID.String()

	// The router reports client-visible failures itself.
	if _, err := g.router.Send(ctx, s.conn, p); err != nil {
		g.logger.Debug("sendMessage failed", zap.String("user_id", s.userID.String()), zap.Error(err))
	}
}

func (g *Gateway) onDelivered(ctx context.Context, s *session, data json.RawMessage) {
	if !s.joined {
		g.sendError(s.conn, contract.CodeNotJoined, "joinChat first")
		return
	}
	var p contract.MessageDeliveredPayload
	if err := json.Unmarshal(data, &p); err != nil {
		g.sendError(s.conn, contract.CodeBadFrame, "invalid messageDelivered payload")
		return
	}
	id, err := uuid.Parse(p.MessageID)
	if err != nil {
		g.sendError(s.conn, contract.CodeBadFrame, "messageId is not a valid id")
		return
	}
	if _, err := g.router.Acknowledge(ctx, s.userID, id); err != nil {
		g.logger.Warn("acknowledge failed", zap.String("message_id", p.MessageID), zap.Error(err))
	}
}

// disconnect drops the registry entry held by this socket, if any. A socket
// that never joined, or was replaced by a newer one, removes nothing.
func (g *Gateway) disconnect(s *session) {
	if userID, ok := g.registry.Unregister(s.conn); ok {
		g.logger.Debug("user left", zap.String("user_id", userID.String()), zap.String("conn_id", s.conn.ID))
	}
	s.conn.Close(websocket.CloseNormalClosure, "session closed")
}

func (g *Gateway) sendError(conn *Connection, code, message string) {
	if err := conn.Emit(contract.EventSendError, contract.ErrorPayload{Code: code, Message: message}); err != nil {
		g.logger.Debug("sendError emit failed", zap.String("code", code), zap.Error(err))
	}
}
