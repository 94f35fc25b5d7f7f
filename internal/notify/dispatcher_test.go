package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/contract"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_MissingParams(t *testing.T) {
	f := newFixture()
	u := f.store.AddUser(models.User{FullName: "Bob"})

	tests := []struct {
		name string
		in   Input
	}{
		{"no user", Input{Title: "t", Body: "b"}},
		{"no title", Input{UserID: u.ID, Body: "b"}},
		{"no body", Input{UserID: u.ID, Title: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.d.Dispatch(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrMissingParams)
			assert.Nil(t, res)
		})
	}

	assert.Zero(t, f.store.NotificationCount())
	assert.Empty(t, f.provider.sends)
}

func TestDispatch_UnknownUser(t *testing.T) {
	f := newFixture()

	_, err := f.d.Dispatch(context.Background(), Input{UserID: uuid.New(), Title: "t", Body: "b"})
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Zero(t, f.store.NotificationCount())
}

func TestDispatch_NoTokenOffline(t *testing.T) {
	f := newFixture()
	u := f.store.AddUser(models.User{FullName: "Bob"})

	res, err := f.d.Dispatch(context.Background(), Input{UserID: u.ID, Title: "Hi", Body: "there", Link: "/chat/x"})
	require.NoError(t, err)

	require.NotNil(t, res.Notification)
	assert.Equal(t, "/chat/x", res.Notification.Link)
	assert.False(t, res.Pushed)
	assert.NoError(t, res.PushErr)
	assert.False(t, res.Emitted)
	assert.Empty(t, f.provider.sends)
	assert.Equal(t, 1, f.store.NotificationCount())
}

func TestDispatch_PushAndEmit(t *testing.T) {
	f := newFixture()
	u := f.store.AddUser(models.User{FullName: "Bob"})
	f.store.SetPushToken(u.ID, "tok-bob")
	conn := &recordingConn{}
	f.registry.Register(u.ID, conn)

	res, err := f.d.Dispatch(context.Background(), Input{
		UserID: u.ID,
		Title:  "New message from Alice",
		Body:   "hello",
		Data:   map[string]string{"type": "chat", "senderId": "a"},
		Link:   "/chat/a",
	})
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	assert.True(t, res.Emitted)

	require.Len(t, f.provider.sends, 1)
	sent := f.provider.sends[0]
	assert.Equal(t, "tok-bob", sent.Token)
	assert.Equal(t, "New message from Alice", sent.Msg.Title)
	assert.Equal(t, "FLUTTER_NOTIFICATION_CLICK", sent.Msg.Data["click_action"])
	assert.Equal(t, "chat", sent.Msg.Data["type"], "caller data overrides defaults")
	assert.Equal(t, "/chat/a", sent.Msg.Data["link"])
	assert.True(t, f.provider.sawTimeout, "provider call runs under a deadline")

	events := conn.Events()
	require.Len(t, events, 1)
	assert.Equal(t, contract.EventNotification, events[0].Event)
	payload, ok := events[0].Payload.(contract.NotificationPayload)
	require.True(t, ok)
	assert.Equal(t, res.Notification.ID.String(), payload.ID)
	assert.Equal(t, "hello", payload.Body)
	assert.False(t, payload.IsRead)
}

func TestDispatch_PushFailureKeepsRecord(t *testing.T) {
	f := newFixture()
	u := f.store.AddUser(models.User{FullName: "Bob"})
	f.store.SetPushToken(u.ID, "tok-bob")
	f.provider.sendErr = errors.New("provider down")

	res, err := f.d.Dispatch(context.Background(), Input{UserID: u.ID, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.False(t, res.Pushed)
	assert.Error(t, res.PushErr)
	assert.Equal(t, 1, f.store.NotificationCount())

	got, err := f.store.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PushToken, "transient failures keep the token")
}

func TestDispatch_InvalidTokenIsCleared(t *testing.T) {
	f := newFixture()
	u := f.store.AddUser(models.User{FullName: "Bob"})
	f.store.SetPushToken(u.ID, "tok-dead")
	f.provider.invalid["tok-dead"] = true

	res, err := f.d.Dispatch(context.Background(), Input{UserID: u.ID, Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.PushErr, ErrInvalidToken)

	got, err := f.store.Users().GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PushToken)
}

func TestSendToSelf(t *testing.T) {
	f := newFixture()
	withToken := f.store.AddUser(models.User{FullName: "Alice"})
	f.store.SetPushToken(withToken.ID, "tok-alice")
	noToken := f.store.AddUser(models.User{FullName: "Bob"})

	ctx := context.Background()

	require.NoError(t, f.d.SendToSelf(ctx, withToken.ID, "Test", "ping", nil))
	require.Len(t, f.provider.sends, 1)
	assert.Equal(t, "tok-alice", f.provider.sends[0].Token)
	assert.Equal(t, "custom", f.provider.sends[0].Msg.Data["type"])

	assert.ErrorIs(t, f.d.SendToSelf(ctx, noToken.ID, "Test", "ping", nil), ErrNoPushToken)
	assert.ErrorIs(t, f.d.SendToSelf(ctx, uuid.New(), "Test", "ping", nil), ErrUserNotFound)
	assert.ErrorIs(t, f.d.SendToSelf(ctx, withToken.ID, "", "ping", nil), ErrMissingParams)

	assert.Zero(t, f.store.NotificationCount(), "push-only path writes no record")
}
