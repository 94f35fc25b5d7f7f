package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/lalith-99/marketchat/internal/repository"
)

const messageColumns = `id, sender_id, receiver_id, message, attachments, product_id, status, created_at, updated_at`

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

var _ repository.MessageRepository = (*MessageStore)(nil)

func (s *MessageStore) Create(ctx context.Context, in repository.CreateMessageInput) (*models.Message, error) {
	// clock_timestamp() instead of now(): now() is frozen for the whole
	// transaction, and history ordering relies on created_at being distinct
	// for back-to-back sends.
	query := `
		INSERT INTO chats (sender_id, receiver_id, message, attachments, product_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'sent', clock_timestamp(), clock_timestamp())
		RETURNING ` + messageColumns

	attachments := in.Attachments
	if attachments == nil {
		attachments = []string{}
	}

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, in.SenderID, in.ReceiverID, in.Text, attachments, in.ProductID))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM chats WHERE id = $1`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	// (created_at, id) gives a total order even if two rows share a timestamp.
	query := `
		SELECT ` + messageColumns + `
		FROM chats
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC`

	return s.list(ctx, "list conversation", query, a, b)
}

func (s *MessageStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chats
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC`

	return s.list(ctx, "list user messages", query, userID)
}

func (s *MessageStore) UpdateStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) (*models.Message, error) {
	query := `
		UPDATE chats
		SET status = $2, updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING ` + messageColumns

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, messageID, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("update message status: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) MarkDelivered(ctx context.Context, messageID, receiverID uuid.UUID) (bool, error) {
	// The status guard lives in the WHERE clause so a late ack can never
	// downgrade a message that was already read.
	query := `
		UPDATE chats
		SET status = 'delivered', updated_at = clock_timestamp()
		WHERE id = $1 AND receiver_id = $2 AND status = 'sent'`

	tag, err := s.pool.Exec(ctx, query, messageID, receiverID)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *MessageStore) list(ctx context.Context, op, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		msg    models.Message
		status string
	)
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Text,
		&msg.Attachments,
		&msg.ProductID,
		&status,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	msg.Status = models.MessageStatus(status)
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}
	return &msg, nil
}
