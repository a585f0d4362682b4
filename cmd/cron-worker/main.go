package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/domeo/backoffice/internal/cron"
	"github.com/domeo/backoffice/internal/notifications"
	"github.com/domeo/backoffice/pkg/config"
	"github.com/domeo/backoffice/pkg/db"
	"github.com/domeo/backoffice/pkg/instance"
	"github.com/domeo/backoffice/pkg/logger"
	"github.com/domeo/backoffice/pkg/metrics"
	"github.com/domeo/backoffice/pkg/migrate"
	"github.com/domeo/backoffice/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
	})

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

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
		// replicas must not purge concurrently, so a configured but unreachable redis is fatal here
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		redisLock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker:"+envOrLocal(cfg.App.Env)), cfg.Maintenance.LockTTL)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
	} else {
		logg.Info(ctx, "redis not configured, using in-process lock")
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:        logg,
		Notifications: notificationsService,
		RetentionDays: cfg.Maintenance.NotificationRetentionDays,
	})
	if err != nil {
		logg.Error(ctx, "failed to create notification retention job", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(retentionJob)
	if err != nil {
		logg.Error(ctx, "failed to register jobs", err)
		os.Exit(1)
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewMaintenanceMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Maintenance.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"jobs":     registry.Names(),
		"interval": service.Interval().String(),
	})

	if *once {
		logg.Info(ctx, "running maintenance jobs once")
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "maintenance run failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
