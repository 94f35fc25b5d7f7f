package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/marketchat/internal/api"
	"github.com/lalith-99/marketchat/internal/cache"
	"github.com/lalith-99/marketchat/internal/chat"
	"github.com/lalith-99/marketchat/internal/config"
	"github.com/lalith-99/marketchat/internal/db"
	"github.com/lalith-99/marketchat/internal/notify"
	"github.com/lalith-99/marketchat/internal/observ"
	"github.com/lalith-99/marketchat/internal/presence"
	"github.com/lalith-99/marketchat/internal/queue"
	"github.com/lalith-99/marketchat/internal/realtime"
	"github.com/lalith-99/marketchat/internal/repository"
	"github.com/lalith-99/marketchat/internal/repository/memory"
	"github.com/lalith-99/marketchat/internal/repository/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// repos is the storage the rest of the process is built on.
type repos struct {
	users         repository.UserRepository
	products      repository.ProductRepository
	messages      repository.MessageRepository
	blocks        repository.BlockRepository
	notifications repository.NotificationRepository
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, "marketchat")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	admins, err := parseAdmins(cfg.AdminUserIDs)
	if err != nil {
		return err
	}

	// Canceled on SIGINT/SIGTERM; everything below shuts down from it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observ.NewMetrics(registry)

	checks := map[string]api.HealthCheck{}

	// ---------------------------------------------------------------
	// 2. Storage
	// ---------------------------------------------------------------
	var store repos
	switch cfg.Store {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		mem := memory.NewStore()
		store = repos{
			users:         mem.Users(),
			products:      mem.Products(),
			messages:      mem.Messages(),
			blocks:        mem.Blocks(),
			notifications: mem.Notifications(),
		}
	default:
		database, err := db.New(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: int32(cfg.DBMaxConns)}, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()
		checks["postgres"] = database.Health

		pool := database.Pool()
		store = repos{
			users:         postgres.NewUserStore(pool),
			products:      postgres.NewProductStore(pool),
			messages:      postgres.NewMessageStore(pool),
			blocks:        postgres.NewBlockStore(pool),
			notifications: postgres.NewNotificationStore(pool),
		}
	}

	// ---------------------------------------------------------------
	// 3. Redis: profile cache
	//
	// Optional. Without it every enrich goes to the repository and
	// broadcasts run in-process.
	// ---------------------------------------------------------------
	var backend cache.Backend
	if cfg.RedisURL != "" {
		rb, err := cache.NewRedisBackend(ctx, cfg.RedisURL, "marketchat:")
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rb.Close()
		checks["redis"] = rb.Health
		backend = rb
	}
	profiles := cache.NewProfiles(store.users, store.products, backend, cfg.ProfileCacheTTL, logger)
	observ.RegisterCacheStats(registry, func() (int64, int64, int64) {
		s := profiles.Stats()
		return s.Hits, s.Misses, s.Errors
	})

	// ---------------------------------------------------------------
	// 4. Presence, push and notifications
	// ---------------------------------------------------------------
	online := presence.NewRegistry()
	online.OnChange(metrics.SetOnline)

	var provider notify.PushProvider
	if cfg.FirebaseCredentialsFile != "" {
		fcm, err := notify.NewFCMProvider(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			return fmt.Errorf("init push provider: %w", err)
		}
		provider = fcm
	} else {
		logger.Warn("FIREBASE_CREDENTIALS_FILE not set; pushes are only logged")
		provider = notify.NewLogProvider(logger)
	}

	dispatcher := notify.NewDispatcher(
		store.users,
		store.notifications,
		online,
		provider,
		logger,
		notify.WithPushTimeout(cfg.PushTimeout),
		notify.WithMetrics(metrics),
	)

	// ---------------------------------------------------------------
	// 5. Chat routing and the socket gateway
	// ---------------------------------------------------------------
	router := chat.NewRouter(
		store.messages,
		store.blocks,
		chat.NewEnricher(profiles),
		online,
		dispatcher,
		logger,
		metrics,
	)
	gateway := realtime.NewGateway(online, router, logger,
		realtime.WithEventTimeout(cfg.WSEventTimeout),
		realtime.WithSendQueue(cfg.WSSendQueue),
		realtime.WithAllowedOrigins(cfg.WSAllowedOrigins),
	)

	// ---------------------------------------------------------------
	// 6. Broadcast queue
	// ---------------------------------------------------------------
	g, gctx := errgroup.WithContext(ctx)

	var enqueuer api.Enqueuer
	if cfg.RedisURL != "" {
		client, err := queue.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		enqueuer = client

		worker, err := queue.NewServer(cfg.RedisURL, cfg.QueueConcurrency, dispatcher, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return worker.Run(gctx) })
	} else {
		enqueuer = queue.NewInline(dispatcher, logger)
	}

	// ---------------------------------------------------------------
	// 7. HTTP
	// ---------------------------------------------------------------
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(observ.RequestLogger(logger), gin.Recovery())

	api.RegisterRoutes(engine, api.Handlers{
		Auth:         api.NewAuthHandler(store.users, cfg.JWTSecret, cfg.TokenTTL, logger),
		User:         api.NewUserHandler(store.users, store.blocks, logger),
		Chat:         api.NewChatHandler(router, store.blocks, logger),
		Notification: api.NewNotificationHandler(dispatcher, store.notifications, enqueuer, admins, logger),
		Health:       api.NewHealthHandler(checks),
		Socket:       gateway.Handle,
		Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting marketchat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.Store),
			zap.Bool("redis", cfg.RedisURL != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		// Sockets are hijacked, so Shutdown does not wait for them.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func parseAdmins(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_USER_IDS: invalid id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
