// Package memory is an in-process implementation of the repository
// interfaces. It backs STORE=memory for local development and is the
// database used by unit tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/models"
)

// Store owns all tables behind one mutex. The per-table views (Users(),
// Messages(), ...) are cheap handles onto the same state.
type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]*models.User
	products      map[uuid.UUID]*models.Product
	messages      []*models.Message
	notifications []*models.Notification

	now    func() time.Time
	lastTS time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[uuid.UUID]*models.User),
		products: make(map[uuid.UUID]*models.Product),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// AddUser inserts or replaces a user row. A zero ID is assigned a new one.
func (s *Store) AddUser(u models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	u.BlockedUsers = append([]uuid.UUID(nil), u.BlockedUsers...)
	s.users[u.ID] = &u

	out := copyUser(&u)
	return out
}

// AddProduct inserts or replaces a product row.
func (s *Store) AddProduct(p models.Product) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.products[p.ID] = &p
	out := p
	return &out
}

// SetPushToken replaces a user's push token. Empty clears it.
func (s *Store) SetPushToken(userID uuid.UUID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return
	}
	if token == "" {
		u.PushToken = nil
		return
	}
	u.PushToken = &token
}

// MessageCount and NotificationCount let tests assert "nothing was written".
func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) NotificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func (s *Store) Users() *UserStore                 { return &UserStore{s: s} }
func (s *Store) Products() *ProductStore           { return &ProductStore{s: s} }
func (s *Store) Messages() *MessageStore           { return &MessageStore{s: s} }
func (s *Store) Blocks() *BlockStore               { return &BlockStore{s: s} }
func (s *Store) Notifications() *NotificationStore { return &NotificationStore{s: s} }

// tick returns a timestamp strictly after the previous one. Callers hold mu.
func (s *Store) tick() time.Time {
	ts := s.now()
	if !ts.After(s.lastTS) {
		ts = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = ts
	return ts
}

func copyUser(u *models.User) *models.User {
	out := *u
	out.BlockedUsers = append([]uuid.UUID{}, u.BlockedUsers...)
	if u.PushToken != nil {
		t := *u.PushToken
		out.PushToken = &t
	}
	return &out
}

func copyMessage(m *models.Message) models.Message {
	out := *m
	out.Attachments = append([]string{}, m.Attachments...)
	if m.ProductID != nil {
		id := *m.ProductID
		out.ProductID = &id
	}
	return out
}

func sortMessages(msgs []models.Message, asc bool) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if asc {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].CreatedAt.After(msgs[j].CreatedAt)
	})
}
