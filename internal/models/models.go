package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a marketplace account as far as chat cares about it.
//
// BlockedUsers is the blocker's side of the block relationship: the set of
// users this account refuses messages from. It lives on the user row
// (a uuid[] column) rather than in a join table.
//
// PushToken is the device registration token for the push provider. Nil
// means "no device registered" and push delivery is skipped.
type User struct {
	ID           uuid.UUID   `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	ProfileImage string      `json:"profile_image"`
	PasswordHash string      `json:"-"`
	PushToken    *string     `json:"-"`
	BlockedUsers []uuid.UUID `json:"blocked_users"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Product is the listing a conversation can be linked to. Only the fields
// chat renders are modeled; listing CRUD lives elsewhere.
type Product struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// MessageStatus is the lifecycle of a chat message.
//
// sent      - persisted by the server (default).
// delivered - the receiver's client acknowledged the realtime event.
// read      - the receiver marked it read through the REST API.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Valid reports whether s is one of the known statuses.
func (s MessageStatus) Valid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead:
		return true
	}
	return false
}

// Message is a single direct message between two users, optionally about a
// product listing. Once created only Status and UpdatedAt change.
type Message struct {
	ID          uuid.UUID     `json:"id"`
	SenderID    uuid.UUID     `json:"sender_id"`
	ReceiverID  uuid.UUID     `json:"receiver_id"`
	Text        string        `json:"message"`
	Attachments []string      `json:"attachments"`
	ProductID   *uuid.UUID    `json:"product_id,omitempty"`
	Status      MessageStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// UserSummary is the denormalized slice of a user shown next to a message.
type UserSummary struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	ProfileImage string    `json:"profile_image"`
}

// ProductSummary is the denormalized slice of a product shown next to a message.
type ProductSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// EnrichedMessage is what clients render: the stored message joined with
// display fields of its sender, receiver and product at read time. It is
// never persisted; the Message row stays the source of truth.
type EnrichedMessage struct {
	ID          uuid.UUID       `json:"id"`
	Sender      UserSummary     `json:"sender_user"`
	Receiver    UserSummary     `json:"receiver_user"`
	Text        string          `json:"message"`
	Attachments []string        `json:"attachments"`
	Product     *ProductSummary `json:"product,omitempty"`
	Status      MessageStatus   `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ChatPartner is one row of "who am I talking to": the other user plus the
// newest message exchanged with them.
type ChatPartner struct {
	User        UserSummary     `json:"user"`
	LastMessage string          `json:"last_message"`
	LastAt      time.Time       `json:"last_at"`
	Product     *ProductSummary `json:"product,omitempty"`
}

// Notification is a notification-center entry. It is written whether or not
// the push provider accepts the matching push.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
