package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/observ"
	"go.uber.org/zap"
)

// BatchSize is the provider's multicast limit.
const BatchSize = 500

type BroadcastInput struct {
	Title          string            `json:"title"`
	Body           string            `json:"body"`
	Data           map[string]string `json:"data,omitempty"`
	ExcludeUserIDs []uuid.UUID       `json:"exclude_user_ids,omitempty"`
}

type BroadcastResult struct {
	Recipients int   `json:"recipients"`
	Batches    int   `json:"batches"`
	Success    int   `json:"success"`
	Failure    int   `json:"failure"`
	Removed    int64 `json:"removed"`
}

// Broadcast pushes one message to every registered device. No notification
// records are written. A batch whose provider call fails outright is counted
// as failed and the remaining batches still go out. If ctx ends after a
// batch was sent, the partial result is returned with an error wrapping
// ErrBroadcastInterrupted and the context error.
func (d *Dispatcher) Broadcast(ctx context.Context, in BroadcastInput) (*BroadcastResult, error) {
	if in.Title == "" || in.Body == "" {
		return nil, ErrMissingParams
	}

	tokens, err := d.users.ListPushTokens(ctx, in.ExcludeUserIDs)
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	tokens = uniqueTokens(tokens)
	if len(tokens) == 0 {
		return nil, ErrNoRecipients
	}

	msg := PushMessage{Title: in.Title, Body: in.Body, Data: pushData(in.Data, "")}
	res := &BroadcastResult{Recipients: len(tokens)}

	for start := 0; start < len(tokens); start += BatchSize {
		if err := ctx.Err(); err != nil {
			if res.Batches > 0 {
				d.logger.Warn("broadcast interrupted",
					zap.Int("recipients", res.Recipients),
					zap.Int("attempted", start),
					zap.Int("success", res.Success),
					zap.Int("failure", res.Failure),
				)
				return res, fmt.Errorf("%w after %d of %d tokens: %w", ErrBroadcastInterrupted, start, len(tokens), err)
			}
			return res, err
		}
		end := min(start+BatchSize, len(tokens))
		batch := tokens[start:end]
		res.Batches++

		results, err := d.sendBatch(ctx, batch, msg)
		if err != nil {
			d.logger.Error("multicast batch failed",
				zap.Int("batch", res.Batches),
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			res.Failure += len(batch)
			d.metrics.Push(observ.PushFailed, len(batch))
			continue
		}

		var invalid []string
		for _, r := range results {
			if r.Err == nil {
				res.Success++
				continue
			}
			res.Failure++
			if errors.Is(r.Err, ErrInvalidToken) {
				invalid = append(invalid, r.Token)
			}
		}
		d.metrics.Push(observ.PushSent, len(results)-countFailed(results))
		d.metrics.Push(observ.PushFailed, countFailed(results))

		if len(invalid) > 0 {
			removed, err := d.users.ClearPushTokens(ctx, invalid)
			if err != nil {
				d.logger.Error("clear invalid tokens failed", zap.Int("tokens", len(invalid)), zap.Error(err))
				continue
			}
			res.Removed += removed
			d.metrics.Push(observ.PushRemoved, int(removed))
		}
	}

	d.logger.Info("broadcast finished",
		zap.Int("recipients", res.Recipients),
		zap.Int("batches", res.Batches),
		zap.Int("success", res.Success),
		zap.Int("failure", res.Failure),
		zap.Int64("removed", res.Removed),
	)
	return res, nil
}

func (d *Dispatcher) sendBatch(ctx context.Context, batch []string, msg PushMessage) ([]TokenResult, error) {
	pctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()
	return d.push.SendMulticast(pctx, batch, msg)
}

func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func countFailed(results []TokenResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
