//go:build integration

package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/lalith-99/marketchat/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPool applies the migration into a throwaway schema and returns a
// pool whose search_path points at it. Run with:
//
//	DATABASE_URL=postgres://... go test -tags integration ./internal/repository/postgres/
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := "marketchat_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close(context.Background())
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema + ",public"
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	ddl, err := os.ReadFile("../../../migrations/001_init.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(ddl))
	require.NoError(t, err)
	return pool
}

// insertUser adds a users row; an empty token is stored as NULL.
func insertUser(t *testing.T, pool *pgxpool.Pool, email, token string) uuid.UUID {
	t.Helper()
	var pushToken any
	if token != "" {
		pushToken = token
	}
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, full_name, password_hash, push_token) VALUES ($1, $2, 'x', $3) RETURNING id`,
		email, strings.Split(email, "@")[0], pushToken,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestBlockStore(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	blocks := NewBlockStore(pool)
	alice := insertUser(t, pool, "alice@example.com", "")
	bob := insertUser(t, pool, "bob@example.com", "")

	require.NoError(t, blocks.Block(ctx, bob, alice))
	require.NoError(t, blocks.Block(ctx, bob, alice))

	list, err := blocks.ListBlocked(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{alice}, list, "second block must not append a duplicate")

	blocked, err := blocks.IsBlocked(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = blocks.IsBlocked(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, blocks.Unblock(ctx, bob, alice))
	require.NoError(t, blocks.Unblock(ctx, bob, alice))
	list, err = blocks.ListBlocked(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	list, err = blocks.ListBlocked(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, list)
}

func TestMessageStore_MarkDelivered(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	msgs := NewMessageStore(pool)
	sender, receiver := uuid.New(), uuid.New()

	m, err := msgs.Create(ctx, repository.CreateMessageInput{SenderID: sender, ReceiverID: receiver, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, m.Status)
	assert.NotNil(t, m.Attachments)

	ok, err := msgs.MarkDelivered(ctx, m.ID, sender)
	require.NoError(t, err)
	assert.False(t, ok, "only the receiver can acknowledge")

	ok, err = msgs.MarkDelivered(ctx, m.ID, receiver)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = msgs.MarkDelivered(ctx, m.ID, receiver)
	require.NoError(t, err)
	assert.False(t, ok)

	read, err := msgs.UpdateStatus(ctx, m.ID, models.StatusRead)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, read.Status)

	ok, err = msgs.MarkDelivered(ctx, m.ID, receiver)
	require.NoError(t, err)
	assert.False(t, ok, "a late ack never moves read back to delivered")

	got, err := msgs.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, got.Status)

	_, err = msgs.UpdateStatus(ctx, uuid.New(), models.StatusRead)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	missing, err := msgs.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMessageStore_Ordering(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	msgs := NewMessageStore(pool)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	for _, in := range []repository.CreateMessageInput{
		{SenderID: a, ReceiverID: b, Text: "1"},
		{SenderID: b, ReceiverID: a, Text: "2", Attachments: []string{"x.png"}},
		{SenderID: a, ReceiverID: c, Text: "3"},
	} {
		_, err := msgs.Create(ctx, in)
		require.NoError(t, err)
	}

	conv, err := msgs.ListConversation(ctx, b, a)
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, "1", conv[0].Text)
	assert.Equal(t, "2", conv[1].Text)
	assert.Equal(t, []string{"x.png"}, conv[1].Attachments)

	all, err := msgs.ListForUser(ctx, a)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].Text)
	assert.Equal(t, "1", all[2].Text)
}

func TestUserStore_PushTokens(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users := NewUserStore(pool)
	a := insertUser(t, pool, "a@example.com", "shared")
	insertUser(t, pool, "b@example.com", "shared")
	c := insertUser(t, pool, "c@example.com", "only-c")
	insertUser(t, pool, "d@example.com", "")

	tokens, err := users.ListPushTokens(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"only-c", "shared"}, tokens)

	tokens, err = users.ListPushTokens(ctx, []uuid.UUID{c})
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, tokens)

	// One account sharing the token still has it on the other row.
	tokens, err = users.ListPushTokens(ctx, []uuid.UUID{a})
	require.NoError(t, err)
	assert.Equal(t, []string{"only-c", "shared"}, tokens)

	n, err := users.ClearPushTokens(ctx, []string{"shared"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = users.ClearPushTokens(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	tokens, err = users.ListPushTokens(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"only-c"}, tokens)
}

func TestUserStore_GetByEmail(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	users := NewUserStore(pool)
	id := insertUser(t, pool, "alice@example.com", "tok")

	got, err := users.GetByEmail(ctx, "ALICE@Example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	require.NotNil(t, got.PushToken)
	assert.Equal(t, "tok", *got.PushToken)

	got, err = users.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = users.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNotificationStore(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()
	notifications := NewNotificationStore(pool)
	bob := insertUser(t, pool, "bob@example.com", "")
	alice := insertUser(t, pool, "alice@example.com", "")

	first, err := notifications.Create(ctx, bob, "New message", "hi", "/chat")
	require.NoError(t, err)
	_, err = notifications.Create(ctx, bob, "New message", "again", "/chat")
	require.NoError(t, err)

	unread, err := notifications.ListUnread(ctx, bob)
	require.NoError(t, err)
	require.Len(t, unread, 2)
	assert.Equal(t, "again", unread[0].Body)

	assert.ErrorIs(t, notifications.MarkRead(ctx, alice, first.ID), repository.ErrNotFound)
	require.NoError(t, notifications.MarkRead(ctx, bob, first.ID))

	n, err := notifications.MarkAllRead(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	unread, err = notifications.ListUnread(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
