package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lalith-99/marketchat/internal/presence"
	"github.com/lalith-99/marketchat/internal/repository/memory"
	"go.uber.org/zap"
)

type sentPush struct {
	Token string
	Msg   PushMessage
}

// fakeProvider records calls. invalid tokens fail with ErrInvalidToken,
// transient ones with a plain error; failBatch makes the n-th multicast
// call (1-based) fail outright.
type fakeProvider struct {
	mu         sync.Mutex
	sends      []sentPush
	batches    [][]string
	invalid    map[string]bool
	transient  map[string]bool
	failBatch  int
	sendErr    error
	sawTimeout bool
	afterBatch func()
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{invalid: map[string]bool{}, transient: map[string]bool{}}
}

func (p *fakeProvider) Send(ctx context.Context, token string, msg PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := ctx.Deadline(); ok {
		p.sawTimeout = true
	}
	p.sends = append(p.sends, sentPush{Token: token, Msg: msg})
	if p.sendErr != nil {
		return p.sendErr
	}
	return p.tokenErr(token)
}

func (p *fakeProvider) SendMulticast(ctx context.Context, tokens []string, msg PushMessage) ([]TokenResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]string(nil), tokens...))
	if p.afterBatch != nil {
		defer p.afterBatch()
	}
	if p.failBatch == len(p.batches) {
		return nil, errors.New("provider unavailable")
	}
	out := make([]TokenResult, len(tokens))
	for i, t := range tokens {
		out[i] = TokenResult{Token: t, Err: p.tokenErr(t)}
	}
	return out, nil
}

func (p *fakeProvider) tokenErr(token string) error {
	switch {
	case p.invalid[token]:
		return fmt.Errorf("%w: unregistered", ErrInvalidToken)
	case p.transient[token]:
		return errors.New("quota exceeded")
	}
	return nil
}

type emitted struct {
	Event   string
	Payload any
}

type recordingConn struct {
	mu     sync.Mutex
	events []emitted
}

func (c *recordingConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{Event: event, Payload: payload})
	return nil
}

func (c *recordingConn) Events() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

type fixture struct {
	store    *memory.Store
	registry *presence.Registry
	provider *fakeProvider
	d        *Dispatcher
}

func newFixture() *fixture {
	f := &fixture{
		store:    memory.NewStore(),
		registry: presence.NewRegistry(),
		provider: newFakeProvider(),
	}
	f.d = NewDispatcher(f.store.Users(), f.store.Notifications(), f.registry, f.provider, zap.NewNop())
	return f
}
