package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/domeo/backoffice/pkg/logger"
)

const (
	NotificationRetentionJobName = "notification-retention"

	defaultNotificationRetentionDays = 30
)

type NotificationRetentionJobParams struct {
	Logger        *logger.Logger
	Notifications notificationPurger
	RetentionDays int
}

type notificationPurger interface {
	PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewNotificationRetentionJob deletes read notifications older than the
// retention window. Unread notifications are never purged.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultNotificationRetentionDays
	}
	return &notificationRetentionJob{
		logg:          params.Logger,
		notifications: params.Notifications,
		retentionDays: days,
	}, nil
}

type notificationRetentionJob struct {
	logg          *logger.Logger
	notifications notificationPurger
	retentionDays int
}

func (j *notificationRetentionJob) Name() string { return NotificationRetentionJobName }

func (j *notificationRetentionJob) Run(ctx context.Context) error {
	window := time.Duration(j.retentionDays) * 24 * time.Hour
	deleted, err := j.notifications.PurgeRead(ctx, window)
	if err != nil {
		return fmt.Errorf("notification retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retentionDays,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "notification retention complete")
	return nil
}
