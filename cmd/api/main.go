package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/domeo/backoffice/api/routes"
	"github.com/domeo/backoffice/internal/documents"
	"github.com/domeo/backoffice/internal/notifications"
	"github.com/domeo/backoffice/pkg/config"
	"github.com/domeo/backoffice/pkg/db"
	"github.com/domeo/backoffice/pkg/enums"
	"github.com/domeo/backoffice/pkg/env"
	"github.com/domeo/backoffice/pkg/instance"
	"github.com/domeo/backoffice/pkg/logger"
	"github.com/domeo/backoffice/pkg/metrics"
	"github.com/domeo/backoffice/pkg/migrate"
	"github.com/domeo/backoffice/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	deps := routes.Deps{
		Config: cfg,
		Logger: logg,
		DB:     dbClient,
	}

	var locker documents.Locker = documents.NopLocker{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			// documents still dedupe through the unique dedup_key index
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "redis unavailable, running without lock and idempotency replay")
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logg.Error(context.Background(), "error closing redis", err)
				}
			}()
			redisLocker, err := documents.NewRedisLocker(redisClient, cfg.Documents.LockTTL, cfg.Documents.LockWait)
			if err != nil {
				logg.Error(ctx, "failed to create document lock", err)
				os.Exit(1)
			}
			locker = redisLocker
			deps.Redis = redisClient
			deps.Idempotency = redisClient
		}
	} else {
		logg.Info(ctx, "redis not configured")
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	defaultTypes, err := parseDocumentTypes(cfg.Documents.DefaultDocumentTypes)
	if err != nil {
		logg.Error(ctx, "invalid default document types", err)
		os.Exit(1)
	}

	documentsService, err := documents.NewService(documents.NewRepository(dbClient.DB()), dbClient, documents.Options{
		Locker:         locker,
		Notifier:       notificationsService,
		Metrics:        metrics.NewDocumentMetrics(prometheus.DefaultRegisterer),
		Logger:         logg,
		CandidateLimit: cfg.Documents.FuzzyCandidateLimit,
		DefaultTypes:   defaultTypes,
	})
	if err != nil {
		logg.Error(ctx, "failed to create documents service", err)
		os.Exit(1)
	}
	deps.Documents = documentsService
	deps.Notifications = notificationsService

	// PORT is injected by the hosting platform and wins over DOMEO_APP_PORT
	addr := ":" + env.Get("PORT", cfg.App.Port)
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func parseDocumentTypes(values []string) ([]enums.DocumentType, error) {
	out := make([]enums.DocumentType, 0, len(values))
	for _, value := range values {
		docType, err := enums.ParseDocumentType(value)
		if err != nil {
			return nil, err
		}
		out = append(out, docType)
	}
	return out, nil
}
