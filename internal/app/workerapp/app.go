package workerapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/app/core"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/config"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/jobs/sweep"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
	redrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/redis"
	notifysvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/notify"
)

const shutdownTimeout = 10 * time.Second

// App runs the hygiene sweep and serves worker metrics.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	job      *sweep.Job
	metrics  *http.Server
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for worker: %w", err)
	}
	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	services, err := core.Build(cfg, core.Infra{
		Postgres: pool,
		Redis:    redisClient,
		Notifier: notifysvc.Nop{},
		Logger:   log,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}

	job := sweep.New(
		services.Repos.Conversations,
		services.Repos.Likes,
		services.Reversal,
		sweep.Config{
			Batch:          cfg.Worker.SweepBatch,
			ReconcileBatch: cfg.Worker.ReconcileBatch,
			VisibleTTL:     cfg.Remote.Surfacing.VisibleTTL,
		},
		log.Named("sweep"),
	)

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &App{
		cfg:      cfg,
		logger:   log,
		postgres: pool,
		redis:    redisClient,
		job:      job,
		metrics: &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Run blocks until ctx is cancelled or one of the worker loops fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.job.Loop(gctx, a.cfg.Worker.SweepInterval)
	})

	g.Go(func() error {
		a.logger.Info("worker metrics server started", zap.String("addr", a.cfg.Worker.MetricsAddr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("worker metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.metrics.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}
