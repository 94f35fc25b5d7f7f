package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/lalith-99/marketchat/internal/repository"
)

// Conversation returns every message between a and b, oldest first.
func (r *Router) Conversation(ctx context.Context, a, b uuid.UUID) ([]models.EnrichedMessage, error) {
	msgs, err := r.messages.ListConversation(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return r.enricher.EnrichAll(ctx, msgs)
}

// Partners lists everyone userID has exchanged messages with, most recent
// conversation first, each with the newest message between them.
func (r *Router) Partners(ctx context.Context, userID uuid.UUID) ([]models.ChatPartner, error) {
	msgs, err := r.messages.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	seen := make(map[uuid.UUID]struct{})
	out := make([]models.ChatPartner, 0)
	for i := range msgs {
		m := &msgs[i]
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}

		em, err := r.enricher.Enrich(ctx, m)
		if err != nil {
			return nil, err
		}
		user := em.Sender
		if user.ID == userID {
			user = em.Receiver
		}
		out = append(out, models.ChatPartner{
			User:        user,
			LastMessage: m.Text,
			LastAt:      m.CreatedAt,
			Product:     em.Product,
		})
	}
	return out, nil
}

// MarkRead sets a message's status to read. Only the receiver may do so;
// for anyone else the message does not exist (repository.ErrNotFound).
func (r *Router) MarkRead(ctx context.Context, readerID, messageID uuid.UUID) (*models.Message, error) {
	m, err := r.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if m == nil || m.ReceiverID != readerID {
		return nil, repository.ErrNotFound
	}
	return r.messages.UpdateStatus(ctx, messageID, models.StatusRead)
}
