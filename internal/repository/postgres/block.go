package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/marketchat/internal/repository"
)

// BlockStore keeps the block set in users.blocked_users (uuid[]).
type BlockStore struct {
	pool *pgxpool.Pool
}

func NewBlockStore(pool *pgxpool.Pool) *BlockStore {
	return &BlockStore{pool: pool}
}

var _ repository.BlockRepository = (*BlockStore)(nil)

func (s *BlockStore) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	// The NOT ANY guard makes the append idempotent: a second block of the
	// same user updates zero rows instead of adding a duplicate element.
	query := `
		UPDATE users
		SET blocked_users = array_append(blocked_users, $2::uuid)
		WHERE id = $1 AND NOT ($2::uuid = ANY(blocked_users))`

	if _, err := s.pool.Exec(ctx, query, blockerID, blockedID); err != nil {
		return fmt.Errorf("block user: %w", err)
	}
	return nil
}

func (s *BlockStore) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	query := `
		UPDATE users
		SET blocked_users = array_remove(blocked_users, $2::uuid)
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, blockerID, blockedID); err != nil {
		return fmt.Errorf("unblock user: %w", err)
	}
	return nil
}

func (s *BlockStore) IsBlocked(ctx context.Context, blockerID, candidateID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE id = $1 AND $2::uuid = ANY(blocked_users)
		)`

	var blocked bool
	if err := s.pool.QueryRow(ctx, query, blockerID, candidateID).Scan(&blocked); err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return blocked, nil
}

func (s *BlockStore) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT unnest(blocked_users) FROM users WHERE id = $1`

	rows, err := s.pool.Query(ctx, query, blockerID)
	if err != nil {
		return nil, fmt.Errorf("list blocked: %w", err)
	}
	defer rows.Close()

	blocked := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blocked: %w", err)
		}
		blocked = append(blocked, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocked: %w", err)
	}
	return blocked, nil
}
