// Package contract defines the realtime wire protocol shared by the
// gateway, the delivery router and the notification dispatcher.
//
// Every frame in either direction is a JSON Frame: {"event": ..., "data": ...}.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Client -> server events.
const (
	EventJoinChat         = "joinChat"
	EventSendMessage      = "sendMessage"
	EventMessageDelivered = "messageDelivered"
)

// Server -> client events.
const (
	EventReceiveMessage = "receiveMessage"
	EventNotification   = "notification"
	EventSendError      = "sendError"
	EventConnected      = "connected"
)

var inbound = map[string]struct{}{
	EventJoinChat:         {},
	EventSendMessage:      {},
	EventMessageDelivered: {},
}

// Frame is one websocket text message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Validate checks a frame received from a client.
func (f Frame) Validate() error {
	if f.Event == "" {
		return errors.New("missing event")
	}
	if _, ok := inbound[f.Event]; !ok {
		return fmt.Errorf("unsupported event: %s", f.Event)
	}
	return nil
}

// NewFrame marshals payload into a Frame.
func NewFrame(event string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: data}, nil
}

// SendMessagePayload is the body of sendMessage. Ids are strings on the wire
// and parsed by the router so a malformed id becomes a sendError, not a
// dropped frame.
type SendMessagePayload struct {
	SenderUser   string   `json:"senderUser"`
	ReceiverUser string   `json:"receiverUser"`
	Message      string   `json:"message"`
	Attachments  []string `json:"attachments,omitempty"`
	Product      string   `json:"product,omitempty"`
}

// MessageDeliveredPayload acknowledges a receiveMessage on the receiver side.
type MessageDeliveredPayload struct {
	MessageID string `json:"messageId"`
}

// NotificationPayload is the body of the notification event.
type NotificationPayload struct {
	ID        string            `json:"_id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Link      string            `json:"link"`
	Data      map[string]string `json:"data"`
	IsRead    bool              `json:"isRead"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ErrorPayload is the body of sendError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried by sendError.
const (
	CodeBadFrame       = "bad_frame"
	CodeInvalidMessage = "invalid_message"
	CodeForbidden      = "forbidden"
	CodePersistFailed  = "persist_failed"
	CodeDeliveryFailed = "delivery_failed"
	CodeRateLimited    = "rate_limited"
	CodeNotJoined      = "not_joined"
)
