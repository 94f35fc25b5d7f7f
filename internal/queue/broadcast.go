// Package queue runs notification broadcasts as background jobs on asynq,
// with Redis as the backing store.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/lalith-99/marketchat/internal/notify"
	"go.uber.org/zap"
)

// TypeBroadcast is the task name of a push broadcast.
const TypeBroadcast = "notify:broadcast"

const (
	broadcastQueue    = "notifications"
	broadcastMaxRetry = 3
	broadcastTimeout  = 5 * time.Minute
)

// Broadcaster runs one broadcast.
type Broadcaster interface {
	Broadcast(ctx context.Context, in notify.BroadcastInput) (*notify.BroadcastResult, error)
}

// NewBroadcastTask encodes in as an asynq task.
func NewBroadcastTask(in notify.BroadcastInput) (*asynq.Task, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal broadcast: %w", err)
	}
	return asynq.NewTask(TypeBroadcast, payload,
		asynq.Queue(broadcastQueue),
		asynq.MaxRetry(broadcastMaxRetry),
		asynq.Timeout(broadcastTimeout),
	), nil
}

// HandleBroadcast returns the task handler. Input errors are not retried,
// and neither is a broadcast interrupted after some batches went out.
// Errors before the first batch are retried.
func HandleBroadcast(b Broadcaster, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var in notify.BroadcastInput
		if err := json.Unmarshal(t.Payload(), &in); err != nil {
			return fmt.Errorf("decode broadcast: %v: %w", err, asynq.SkipRetry)
		}

		res, err := b.Broadcast(ctx, in)
		switch {
		case errors.Is(err, notify.ErrMissingParams), errors.Is(err, notify.ErrNoRecipients):
			logger.Info("broadcast skipped", zap.String("title", in.Title), zap.Error(err))
			return fmt.Errorf("broadcast: %v: %w", err, asynq.SkipRetry)
		case errors.Is(err, notify.ErrBroadcastInterrupted):
			fields := []zap.Field{zap.String("title", in.Title), zap.Error(err)}
			if res != nil {
				fields = append(fields,
					zap.Int("batches", res.Batches),
					zap.Int("success", res.Success),
					zap.Int("failure", res.Failure),
				)
			}
			logger.Warn("broadcast partially sent, not retrying", fields...)
			return fmt.Errorf("broadcast: %v: %w", err, asynq.SkipRetry)
		case err != nil:
			return fmt.Errorf("broadcast: %w", err)
		}

		logger.Info("broadcast job done",
			zap.String("title", in.Title),
			zap.Int("success", res.Success),
			zap.Int("failure", res.Failure),
			zap.Int64("removed", res.Removed),
		)
		return nil
	}
}
