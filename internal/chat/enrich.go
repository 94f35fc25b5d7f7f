// Package chat validates, persists and routes direct messages between
// marketplace users.
package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/models"
)

// Profiles resolves the display fields attached to a message.
// Both methods return nil, nil for rows that no longer exist.
type Profiles interface {
	User(ctx context.Context, userID uuid.UUID) (*models.UserSummary, error)
	Product(ctx context.Context, productID uuid.UUID) (*models.ProductSummary, error)
}

// Enricher joins stored messages with sender, receiver and product display
// fields. Deleted users render as a bare id rather than failing the read.
type Enricher struct {
	profiles Profiles
}

func NewEnricher(profiles Profiles) *Enricher {
	return &Enricher{profiles: profiles}
}

func (e *Enricher) Enrich(ctx context.Context, m *models.Message) (*models.EnrichedMessage, error) {
	sender, err := e.user(ctx, m.SenderID)
	if err != nil {
		return nil, err
	}
	receiver, err := e.user(ctx, m.ReceiverID)
	if err != nil {
		return nil, err
	}

	out := &models.EnrichedMessage{
		ID:          m.ID,
		Sender:      sender,
		Receiver:    receiver,
		Text:        m.Text,
		Attachments: m.Attachments,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if out.Attachments == nil {
		out.Attachments = []string{}
	}

	if m.ProductID != nil {
		p, err := e.profiles.Product(ctx, *m.ProductID)
		if err != nil {
			return nil, fmt.Errorf("enrich product: %w", err)
		}
		out.Product = p
	}
	return out, nil
}

// EnrichAll enriches msgs in order. Lookups go through the profile cache, so
// repeated users in one conversation cost one query each.
func (e *Enricher) EnrichAll(ctx context.Context, msgs []models.Message) ([]models.EnrichedMessage, error) {
	out := make([]models.EnrichedMessage, 0, len(msgs))
	for i := range msgs {
		em, err := e.Enrich(ctx, &msgs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *em)
	}
	return out, nil
}

func (e *Enricher) user(ctx context.Context, id uuid.UUID) (models.UserSummary, error) {
	u, err := e.profiles.User(ctx, id)
	if err != nil {
		return models.UserSummary{}, fmt.Errorf("enrich user: %w", err)
	}
	if u == nil {
		return models.UserSummary{ID: id}, nil
	}
	return *u, nil
}
