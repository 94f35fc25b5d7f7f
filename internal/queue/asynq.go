package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/lalith-99/marketchat/internal/notify"
	"go.uber.org/zap"
)

// Client enqueues broadcast jobs.
type Client struct {
	client *asynq.Client
}

func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// EnqueueBroadcast schedules a broadcast and returns the job id.
func (c *Client) EnqueueBroadcast(ctx context.Context, in notify.BroadcastInput) (string, error) {
	task, err := NewBroadcastTask(in)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue broadcast: %w", err)
	}
	return info.ID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Server consumes broadcast jobs.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(redisURL string, concurrency int, b Broadcaster, logger *zap.Logger) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 2
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{broadcastQueue: 1},
		Logger:      logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBroadcast, HandleBroadcast(b, logger))
	return &Server{server: srv, mux: mux}, nil
}

// Run starts the workers and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return fmt.Errorf("start queue server: %w", err)
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

// Inline runs broadcasts in a goroutine of this process. Used when Redis is
// not configured; jobs are lost on restart and never retried.
type Inline struct {
	b      Broadcaster
	logger *zap.Logger
	run    func(func())
}

func NewInline(b Broadcaster, logger *zap.Logger) *Inline {
	return &Inline{b: b, logger: logger, run: func(f func()) { go f() }}
}

func (q *Inline) EnqueueBroadcast(ctx context.Context, in notify.BroadcastInput) (string, error) {
	if in.Title == "" || in.Body == "" {
		return "", notify.ErrMissingParams
	}
	id := fmt.Sprintf("inline-%d", time.Now().UnixNano())
	bctx := context.WithoutCancel(ctx)

	q.run(func() {
		ctx, cancel := context.WithTimeout(bctx, broadcastTimeout)
		defer cancel()
		if _, err := q.b.Broadcast(ctx, in); err != nil {
			q.logger.Warn("inline broadcast failed", zap.String("job_id", id), zap.Error(err))
		}
	})
	return id, nil
}
