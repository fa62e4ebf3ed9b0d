package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/app/core"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/config"
	s3infra "github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/s3"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/telegram"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
	redrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/redis"
	authsvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/auth"
	notifysvc "github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/notify"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, cfg.HTTP.RequestTimeout, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	infra := core.Infra{
		Postgres: pool,
		Redis:    redisClient,
		Notifier: notifysvc.Nop{},
		Logger:   log,
	}

	if s3Client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, annotated photos will not be signed", zap.Error(err))
	} else {
		infra.Photos = s3infra.NewPhotoStorage(s3Client, cfg.S3.Bucket)
	}

	if cfg.Bot.Token != "" {
		if bot, err := telegram.NewBot(cfg.Bot.Token); err != nil {
			log.Warn("telegram bot init failed, notifications disabled", zap.Error(err))
		} else {
			infra.Notifier = notifysvc.NewDispatcher(bot, pgrepo.NewUserRepo(pool), log.Named("notify"))
		}
	}

	services, err := core.Build(cfg, infra)
	if err != nil {
		return nil, err
	}

	tokens := authsvc.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(tokens, redrepo.NewSessionRepo(redisClient), cfg.Auth.SessionTTL)

	var health handlers.Pinger
	if pool != nil {
		health = pool
	}

	RegisterRoutes(r, Dependencies{
		Auth:      authService,
		Presence:  services.Presence,
		Health:    health,
		Likes:     services.Likes,
		Matches:   services.Matches,
		Surfacing: services.Surfacing,
		Consent:   services.Consent,
		Reversal:  services.Reversal,
		Wallet:    services.Wallet,
		Logger:    log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
