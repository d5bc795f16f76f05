package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	infraredis "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/logger"
	transport "quiz-attempt-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz attempt server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	services, err := buildServices(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer services.Close()

	router := transport.NewRouter(services.attempts, services.leaderboard, transport.RouterConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		Logger:       log,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quiz attempt service", zap.String("addr", server.Addr), zap.String("backend", services.backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TTLDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type serviceSet struct {
	attempts    *app.AttemptService
	leaderboard *app.LeaderboardService
	backend     string
	closers     []func()
}

func (s *serviceSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices picks the stores: Postgres is the store of record when configured,
// Redis caches the catalog (and holds state when Postgres is absent), memory otherwise.
func buildServices(ctx context.Context, cfg config.Config, log *zap.Logger) (*serviceSet, error) {
	set := &serviceSet{backend: "memory"}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, err
		}
		set.closers = append(set.closers, func() { _ = redisClient.Close() })
		set.backend = "redis"
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			set.Close()
			return nil, err
		}
		var err error
		pool, err = postgres.NewPool(ctx, cfg.Postgres.URL, postgres.PoolConfig{
			MaxConns:        cfg.Postgres.MaxConns,
			MaxConnLifetime: config.TTLDuration(cfg.Postgres.MaxConnLifetime, 30*time.Minute),
		})
		if err != nil {
			set.Close()
			return nil, err
		}
		set.closers = append(set.closers, pool.Close)
		set.backend = "postgres"
	}

	var loader memory.CatalogLoader
	if pool != nil {
		loader = postgres.NewCatalogLoader(pool)
	} else {
		static, err := memory.LoadStaticCatalog(cfg.Catalog.SeedFile)
		if err != nil {
			set.Close()
			return nil, err
		}
		loader = static
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = infraredis.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var (
		attempts app.AttemptRepository
		board    app.LeaderboardRepository
	)
	switch {
	case pool != nil:
		attempts = postgres.NewAttemptStore(pool)
		board = postgres.NewLeaderboardStore(pool)
	case redisClient != nil:
		attempts = infraredis.NewAttemptStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		board = infraredis.NewLeaderboardStore(redisClient)
	default:
		attempts = memory.NewAttemptStore()
		board = memory.NewLeaderboardStore()
	}

	set.leaderboard = app.NewLeaderboardService(board, app.NewFeed(),
		app.WithLeaderboardLogger(log.Named("leaderboard")),
		app.WithLimits(cfg.Leaderboard.DefaultLimit, cfg.Leaderboard.MaxLimit),
	)
	set.attempts = app.NewAttemptService(attempts, catalog, set.leaderboard,
		app.WithLogger(log.Named("attempts")),
	)
	return set, nil
}
