package memory

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/lalith-99/marketchat/internal/repository"
)

var (
	_ repository.UserRepository         = (*UserStore)(nil)
	_ repository.ProductRepository      = (*ProductStore)(nil)
	_ repository.MessageRepository      = (*MessageStore)(nil)
	_ repository.BlockRepository        = (*BlockStore)(nil)
	_ repository.NotificationRepository = (*NotificationStore)(nil)
)

// ---- users ----

type UserStore struct{ s *Store }

func (r *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *UserStore) ListPushTokens(ctx context.Context, exclude []uuid.UUID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[string]struct{})
	tokens := make([]string, 0)
	for id, u := range r.s.users {
		if u.PushToken == nil || *u.PushToken == "" || slices.Contains(exclude, id) {
			continue
		}
		if _, dup := seen[*u.PushToken]; dup {
			continue
		}
		seen[*u.PushToken] = struct{}{}
		tokens = append(tokens, *u.PushToken)
	}
	sort.Strings(tokens)
	return tokens, nil
}

func (r *UserStore) ClearPushTokens(ctx context.Context, tokens []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, u := range r.s.users {
		if u.PushToken != nil && slices.Contains(tokens, *u.PushToken) {
			u.PushToken = nil
			n++
		}
	}
	return n, nil
}

// ---- products ----

type ProductStore struct{ s *Store }

func (r *ProductStore) GetByID(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[productID]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

// ---- messages ----

type MessageStore struct{ s *Store }

func (r *MessageStore) Create(ctx context.Context, in repository.CreateMessageInput) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ts := r.s.tick()
	msg := &models.Message{
		ID:          uuid.New(),
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Text:        in.Text,
		Attachments: append([]string{}, in.Attachments...),
		ProductID:   in.ProductID,
		Status:      models.StatusSent,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	r.s.messages = append(r.s.messages, msg)

	out := copyMessage(msg)
	return &out, nil
}

func (r *MessageStore) GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if m := r.find(messageID); m != nil {
		out := copyMessage(m)
		return &out, nil
	}
	return nil, nil
}

func (r *MessageStore) ListConversation(ctx context.Context, a, b uuid.UUID) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range r.s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, copyMessage(m))
		}
	}
	sortMessages(out, true)
	return out, nil
}

func (r *MessageStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Message, 0)
	for _, m := range r.s.messages {
		if m.SenderID == userID || m.ReceiverID == userID {
			out = append(out, copyMessage(m))
		}
	}
	sortMessages(out, false)
	return out, nil
}

func (r *MessageStore) UpdateStatus(ctx context.Context, messageID uuid.UUID, status models.MessageStatus) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m := r.find(messageID)
	if m == nil {
		return nil, repository.ErrNotFound
	}
	m.Status = status
	m.UpdatedAt = r.s.tick()
	out := copyMessage(m)
	return &out, nil
}

func (r *MessageStore) MarkDelivered(ctx context.Context, messageID, receiverID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m := r.find(messageID)
	if m == nil || m.ReceiverID != receiverID || m.Status != models.StatusSent {
		return false, nil
	}
	m.Status = models.StatusDelivered
	m.UpdatedAt = r.s.tick()
	return true, nil
}

func (r *MessageStore) find(id uuid.UUID) *models.Message {
	for _, m := range r.s.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// ---- blocks ----

type BlockStore struct{ s *Store }

func (r *BlockStore) Block(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[blockerID]
	if !ok || slices.Contains(u.BlockedUsers, blockedID) {
		return nil
	}
	u.BlockedUsers = append(u.BlockedUsers, blockedID)
	return nil
}

func (r *BlockStore) Unblock(ctx context.Context, blockerID, blockedID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[blockerID]
	if !ok {
		return nil
	}
	u.BlockedUsers = slices.DeleteFunc(u.BlockedUsers, func(id uuid.UUID) bool { return id == blockedID })
	return nil
}

func (r *BlockStore) IsBlocked(ctx context.Context, blockerID, candidateID uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[blockerID]
	if !ok {
		return false, nil
	}
	return slices.Contains(u.BlockedUsers, candidateID), nil
}

func (r *BlockStore) ListBlocked(ctx context.Context, blockerID uuid.UUID) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[blockerID]
	if !ok {
		return []uuid.UUID{}, nil
	}
	return append([]uuid.UUID{}, u.BlockedUsers...), nil
}

// ---- notifications ----

type NotificationStore struct{ s *Store }

func (r *NotificationStore) Create(ctx context.Context, userID uuid.UUID, title, body, link string) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		Link:      link,
		CreatedAt: r.s.tick(),
	}
	r.s.notifications = append(r.s.notifications, n)
	out := *n
	return &out, nil
}

func (r *NotificationStore) ListUnread(ctx context.Context, userID uuid.UUID) ([]models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]models.Notification, 0)
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.UserID == userID && !n.IsRead {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *NotificationStore) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, n := range r.s.notifications {
		if n.ID == notificationID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *NotificationStore) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, row := range r.s.notifications {
		if row.UserID == userID && !row.IsRead {
			row.IsRead = true
			n++
		}
	}
	return n, nil
}
