package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/models"
)

// ErrNotFound is returned by updates that matched no row. Lookups keep the
// nil, nil convention instead.
var ErrNotFound = errors.New("not found")

// Every method takes context.Context first: each one does I/O, and the
// socket/HTTP layer cancels in-flight queries when the peer goes away.

// CreateMessageInput carries the caller-controlled fields of a new message.
// ID, Status and timestamps are assigned by the store.
type CreateMessageInput struct {
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Text        string
	Attachments []string
	ProductID   *uuid.UUID
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	// Create persists a message with status "sent".
	Create(ctx context.Context, in CreateMessageInput) (*models.Message, error)

	// GetByID returns nil, nil if the message does not exist.
	GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error)

	// ListConversation returns every message exchanged between a and b in
	// either direction, oldest first.
	ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error)

	// ListForUser returns all messages the user sent or received, newest first.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error)

	// UpdateStatus sets the status unconditionally. ErrNotFound if no row.
	UpdateStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) (*models.Message, error)

	// MarkDelivered moves sent -> delivered only when receiverID matches and
	// the message is still "sent". Reports whether a row changed.
	MarkDelivered(ctx context.Context, messageID, receiverID uuid.UUID) (bool, error)
}

// BlockRepository stores the directed block relationship on the blocker's
// user record.
type BlockRepository interface {
	// Block adds blockedID to blockerID's set. Idempotent.
	Block(ctx context.Context, blockerID, blockedID uuid.UUID) error

	// Unblock removes blockedID from the set. No-op if absent.
	Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error

	// IsBlocked reports whether candidateID is in blockerID's set.
	IsBlocked(ctx context.Context, blockerID, candidateID uuid.UUID) (bool, error)

	// ListBlocked returns blockerID's set. Empty slice, never nil.
	ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error)
}

// UserRepository covers the slice of the account record chat needs.
type UserRepository interface {
	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail returns nil, nil if not found. Used by login.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// ListPushTokens returns the distinct non-empty push tokens of every user
	// not in exclude.
	ListPushTokens(ctx context.Context, exclude []uuid.UUID) ([]string, error)

	// ClearPushTokens nulls every user row holding one of tokens and returns
	// the number of rows changed.
	ClearPushTokens(ctx context.Context, tokens []string) (int64, error)
}

// ProductRepository is a read-only view of listings.
type ProductRepository interface {
	// GetByID returns nil, nil if not found.
	GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

// NotificationRepository persists notification-center entries.
type NotificationRepository interface {
	Create(ctx context.Context, userID uuid.UUID, title, body, link string) (*models.Notification, error)

	// ListUnread returns the user's unread notifications, newest first.
	ListUnread(ctx context.Context, userID uuid.UUID) ([]models.Notification, error)

	// MarkRead marks one notification of userID as read. ErrNotFound if no row.
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error

	// MarkAllRead marks every unread notification of userID and returns the count.
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
