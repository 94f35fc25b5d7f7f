// Package notify persists notification-center entries and delivers them
// through push and, when the user is connected, the realtime channel.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/contract"
	"github.com/lalith-99/marketchat/internal/models"
	"github.com/lalith-99/marketchat/internal/observ"
	"github.com/lalith-99/marketchat/internal/presence"
	"github.com/lalith-99/marketchat/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrMissingParams = errors.New("user, title and body are required")
	ErrUserNotFound  = errors.New("user not found")
	ErrNoPushToken   = errors.New("user has no push token")
	ErrNoRecipients  = errors.New("no push tokens registered")

	// ErrBroadcastInterrupted means the context ended after at least one
	// batch reached the provider. Running the broadcast again would push
	// those devices twice.
	ErrBroadcastInterrupted = errors.New("broadcast interrupted")
)

// DefaultPushTimeout bounds each provider call.
const DefaultPushTimeout = 10 * time.Second

// Presence is the slice of the registry the dispatcher needs.
type Presence interface {
	Lookup(userID uuid.UUID) (presence.Conn, bool)
}

// Input describes one notification for one user.
type Input struct {
	UserID uuid.UUID
	Title  string
	Body   string
	Data   map[string]string
	Link   string
}

// Result reports what happened beyond the persisted record. Push failures
// land in PushErr; they never undo the record.
type Result struct {
	Notification *models.Notification
	Pushed       bool
	PushErr      error
	Emitted      bool
}

type Dispatcher struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	presence      Presence
	push          PushProvider
	logger        *zap.Logger

	pushTimeout time.Duration
	metrics     *observ.Metrics
}

type Option func(*Dispatcher)

func WithPushTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.pushTimeout = d
		}
	}
}

func WithMetrics(m *observ.Metrics) Option {
	return func(dp *Dispatcher) { dp.metrics = m }
}

func NewDispatcher(
	users repository.UserRepository,
	notifications repository.NotificationRepository,
	presence Presence,
	push PushProvider,
	logger *zap.Logger,
	opts ...Option,
) *Dispatcher {
	d := &Dispatcher{
		users:         users,
		notifications: notifications,
		presence:      presence,
		push:          push,
		logger:        logger,
		pushTimeout:   DefaultPushTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch writes the notification record, then attempts push and realtime
// delivery. The returned error is only set when nothing was persisted.
func (d *Dispatcher) Dispatch(ctx context.Context, in Input) (*Result, error) {
	if in.UserID == uuid.Nil || in.Title == "" || in.Body == "" {
		return nil, ErrMissingParams
	}

	user, err := d.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	n, err := d.notifications.Create(ctx, in.UserID, in.Title, in.Body, in.Link)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	res := &Result{Notification: n}
	data := pushData(in.Data, in.Link)

	if user.PushToken != nil && *user.PushToken != "" {
		res.PushErr = d.pushOne(ctx, *user.PushToken, PushMessage{Title: in.Title, Body: in.Body, Data: data})
		res.Pushed = res.PushErr == nil
		if res.PushErr != nil {
			d.logger.Warn("push failed",
				zap.String("user_id", in.UserID.String()),
				zap.Error(res.PushErr),
			)
		}
	} else {
		d.metrics.Push(observ.PushSkipped, 1)
	}

	if conn, ok := d.presence.Lookup(in.UserID); ok {
		payload := contract.NotificationPayload{
			ID:        n.ID.String(),
			Title:     n.Title,
			Body:      n.Body,
			Link:      n.Link,
			Data:      data,
			IsRead:    false,
			CreatedAt: n.CreatedAt,
		}
		if err := conn.Emit(contract.EventNotification, payload); err != nil {
			d.logger.Warn("emit notification failed",
				zap.String("user_id", in.UserID.String()),
				zap.Error(err),
			)
		} else {
			res.Emitted = true
		}
	}

	return res, nil
}

// SendToSelf pushes to the user's own device without writing a record.
func (d *Dispatcher) SendToSelf(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	if userID == uuid.Nil || title == "" || body == "" {
		return ErrMissingParams
	}

	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return ErrNoPushToken
	}

	return d.pushOne(ctx, *user.PushToken, PushMessage{Title: title, Body: body, Data: pushData(data, "")})
}

// pushOne sends to a single token under the push timeout and clears the
// token when the provider reports it dead.
func (d *Dispatcher) pushOne(ctx context.Context, token string, msg PushMessage) error {
	pctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()

	err := d.push.Send(pctx, token, msg)
	if err == nil {
		d.metrics.Push(observ.PushSent, 1)
		return nil
	}
	d.metrics.Push(observ.PushFailed, 1)

	if errors.Is(err, ErrInvalidToken) {
		removed, cerr := d.users.ClearPushTokens(ctx, []string{token})
		if cerr != nil {
			d.logger.Error("clear push token failed", zap.Error(cerr))
		} else {
			d.metrics.Push(observ.PushRemoved, int(removed))
		}
	}
	return fmt.Errorf("send push: %w", err)
}

// pushData merges caller data over the defaults mobile clients expect.
func pushData(data map[string]string, link string) map[string]string {
	out := map[string]string{
		"click_action": "FLUTTER_NOTIFICATION_CLICK",
		"type":         "custom",
	}
	if link != "" {
		out["link"] = link
	}
	for k, v := range data {
		out[k] = v
	}
	return out
}
