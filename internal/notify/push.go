package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrInvalidToken marks a provider error meaning the registration token is
// dead (app uninstalled, token rotated). Such tokens are cleared from the
// user record so later sends do not retry them.
var ErrInvalidToken = errors.New("invalid push token")

// PushMessage is the provider-agnostic push payload.
type PushMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// TokenResult is the per-token outcome of a multicast send. Err is nil on
// success.
type TokenResult struct {
	Token string
	Err   error
}

// PushProvider delivers pushes to devices. Implementations wrap
// ErrInvalidToken into errors for tokens the provider rejected as unknown.
type PushProvider interface {
	Send(ctx context.Context, token string, msg PushMessage) error

	// SendMulticast sends one message to every token. The result slice has
	// one entry per token, in order. A non-nil error means the whole call
	// failed and no per-token result is available.
	SendMulticast(ctx context.Context, tokens []string, msg PushMessage) ([]TokenResult, error)
}

// LogProvider is used when no push credentials are configured: every send
// succeeds and is only logged.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(ctx context.Context, token string, msg PushMessage) error {
	p.logger.Debug("push skipped, no provider configured",
		zap.String("title", msg.Title),
	)
	return ctx.Err()
}

func (p *LogProvider) SendMulticast(ctx context.Context, tokens []string, msg PushMessage) ([]TokenResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logger.Debug("multicast skipped, no provider configured",
		zap.String("title", msg.Title),
		zap.Int("tokens", len(tokens)),
	)
	out := make([]TokenResult, len(tokens))
	for i, t := range tokens {
		out[i] = TokenResult{Token: t}
	}
	return out, nil
}
