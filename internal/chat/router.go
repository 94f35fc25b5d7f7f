package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/contract"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/lalith-99/marketchat/internal/notify"
	"github.com/lalith-99/marketchat/internal/observ"
	"github.com/lalith-99/marketchat/internal/presence"
	"github.com/lalith-99/marketchat/internal/repository"
	"go.uber.org/zap"
)

const (
	MaxMessageChars = 4000
	MaxAttachments  = 10
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrBlocked        = errors.New("sender is blocked by receiver")
)

// Presence is the slice of the registry the router needs.
type Presence interface {
	Lookup(userID uuid.UUID) (presence.Conn, bool)
}

// Notifier receives the offline fallback.
type Notifier interface {
	Dispatch(ctx context.Context, in notify.Input) (*notify.Result, error)
}

// SendInput is a validated sendMessage.
type SendInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Text        string
	Attachments []string
	ProductID   *uuid.UUID
}

// ParseSend validates a wire payload. Every failure wraps ErrInvalidMessage.
func ParseSend(p contract.SendMessagePayload) (SendInput, error) {
	var in SendInput

	sender, err := uuid.Parse(p.SenderUser)
	if err != nil {
		return in, fmt.Errorf("%w: senderUser is not a valid id", ErrInvalidMessage)
	}
	receiver, err := uuid.Parse(p.ReceiverUser)
	if err != nil {
		return in, fmt.Errorf("%w: receiverUser is not a valid id", ErrInvalidMessage)
	}
	if sender == receiver {
		return in, fmt.Errorf("%w: cannot message yourself", ErrInvalidMessage)
	}

	attachments := make([]string, 0, len(p.Attachments))
	for _, a := range p.Attachments {
		if a = strings.TrimSpace(a); a != "" {
			attachments = append(attachments, a)
		}
	}
	if strings.TrimSpace(p.Message) == "" && len(attachments) == 0 {
		return in, fmt.Errorf("%w: message or attachments required", ErrInvalidMessage)
	}
	if utf8.RuneCountInString(p.Message) > MaxMessageChars {
		return in, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidMessage, MaxMessageChars)
	}
	if len(attachments) > MaxAttachments {
		return in, fmt.Errorf("%w: more than %d attachments", ErrInvalidMessage, MaxAttachments)
	}

	in = SendInput{
		SenderID:    sender,
		ReceiverID:  receiver,
		Text:        p.Message,
		Attachments: attachments,
	}
	if p.Product != "" {
		pid, err := uuid.Parse(p.Product)
		if err != nil {
			return SendInput{}, fmt.Errorf("%w: product is not a valid id", ErrInvalidMessage)
		}
		in.ProductID = &pid
	}
	return in, nil
}

// Router runs the sendMessage pipeline: validate, block check, persist,
// enrich, realtime fan-out, offline notification. Each stage short-circuits
// the ones after it.
type Router struct {
	messages repository.MessageRepository
	blocks   repository.BlockRepository
	enricher *Enricher
	presence Presence
	notifier Notifier
	logger   *zap.Logger
	metrics  *observ.Metrics
}

func NewRouter(
	messages repository.MessageRepository,
	blocks repository.BlockRepository,
	enricher *Enricher,
	presence Presence,
	notifier Notifier,
	logger *zap.Logger,
	metrics *observ.Metrics,
) *Router {
	return &Router{
		messages: messages,
		blocks:   blocks,
		enricher: enricher,
		presence: presence,
		notifier: notifier,
		logger:   logger,
		metrics:  metrics,
	}
}

// Send handles one sendMessage from sender. Failures the client should see
// are reported on sender as sendError; the returned error is for logging.
// A blocked message returns nil, nil and nobody hears about it.
func (r *Router) Send(ctx context.Context, sender presence.Conn, p contract.SendMessagePayload) (*models.EnrichedMessage, error) {
	in, err := ParseSend(p)
	if err != nil {
		r.metrics.Message(observ.OutcomeInvalid)
		r.sendError(sender, contract.CodeInvalidMessage, err.Error())
		return nil, err
	}

	msg, err := r.Persist(ctx, in)
	if errors.Is(err, ErrBlocked) {
		r.metrics.Message(observ.OutcomeBlocked)
		r.logger.Debug("message dropped, sender blocked",
			zap.String("sender_id", in.SenderID.String()),
			zap.String("receiver_id", in.ReceiverID.String()),
		)
		return nil, nil
	}
	if err != nil {
		r.metrics.Message(observ.OutcomeFailed)
		r.logger.Error("persist message failed",
			zap.String("sender_id", in.SenderID.String()),
			zap.Error(err),
		)
		r.sendError(sender, contract.CodePersistFailed, "message could not be saved")
		return nil, err
	}

	enriched, err := r.enricher.Enrich(ctx, msg)
	if err != nil {
		r.metrics.Message(observ.OutcomeFailed)
		r.logger.Error("enrich message failed",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
		r.sendError(sender, contract.CodeDeliveryFailed, "message saved but could not be delivered")
		return nil, err
	}

	if err := sender.Emit(contract.EventReceiveMessage, enriched); err != nil {
		r.logger.Warn("echo to sender failed",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
	}

	if conn, ok := r.presence.Lookup(in.ReceiverID); ok {
		err := conn.Emit(contract.EventReceiveMessage, enriched)
		if err == nil {
			r.metrics.Message(observ.OutcomeDelivered)
			return enriched, nil
		}
		r.logger.Warn("emit to receiver failed, falling back to notification",
			zap.String("receiver_id", in.ReceiverID.String()),
			zap.Error(err),
		)
	}

	r.metrics.Message(observ.OutcomeOffline)
	r.notifyOffline(ctx, enriched)
	return enriched, nil
}

// Persist checks the block list and stores the message. Used directly by the
// REST send, which does no realtime delivery.
func (r *Router) Persist(ctx context.Context, in SendInput) (*models.Message, error) {
	blocked, err := r.blocks.IsBlocked(ctx, in.ReceiverID, in.SenderID)
	if err != nil {
		return nil, fmt.Errorf("check block: %w", err)
	}
	if blocked {
		return nil, ErrBlocked
	}

	msg, err := r.messages.Create(ctx, repository.CreateMessageInput{
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Text:        in.Text,
		Attachments: in.Attachments,
		ProductID:   in.ProductID,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

// Acknowledge records that the receiver's client got the realtime event.
// Only the receiver can acknowledge, and only a "sent" message moves.
func (r *Router) Acknowledge(ctx context.Context, receiverID, messageID uuid.UUID) (bool, error) {
	ok, err := r.messages.MarkDelivered(ctx, messageID, receiverID)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	return ok, nil
}

func (r *Router) notifyOffline(ctx context.Context, m *models.EnrichedMessage) {
	name := m.Sender.FullName
	if name == "" {
		name = "someone"
	}
	body := m.Text
	if body == "" {
		body = "Sent an attachment"
	}
	link := "/chat/" + m.Sender.ID.String()

	_, err := r.notifier.Dispatch(ctx, notify.Input{
		UserID: m.Receiver.ID,
		Title:  "New message from " + name,
		Body:   body,
		Link:   link,
		Data: map[string]string{
			"link":      link,
			"type":      "chat",
			"senderId":  m.Sender.ID.String(),
			"messageId": m.ID.String(),
		},
	})
	if err != nil {
		r.logger.Warn("offline notification failed",
			zap.String("receiver_id", m.Receiver.ID.String()),
			zap.String("message_id", m.ID.String()),
			zap.Error(err),
		)
	}
}

func (r *Router) sendError(conn presence.Conn, code, message string) {
	if conn == nil {
		return
	}
	if err := conn.Emit(contract.EventSendError, contract.ErrorPayload{Code: code, Message: message}); err != nil {
		r.logger.Debug("sendError emit failed", zap.String("code", code), zap.Error(err))
	}
}
