package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/internal/repo"
	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/pagination"
)

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, clientID string, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, clientID string, now time.Time) (int64, error)
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

type listNotificationsParams struct {
	ClientID   string
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{Base: r.Bind(tx)}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.DB(ctx).Create(notification).Error
}

func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.Notification{}).Where("client_id = ?", params.ClientID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	err := query.Scopes(repo.NewestFirst(params.Cursor)).
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&notifications).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(notifications, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *repositoryImpl) MarkRead(ctx context.Context, clientID string, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	result := r.DB(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND client_id = ? AND read_at IS NULL", notificationID, clientID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return notificationMarkResult{}, result.Error
	}
	if result.RowsAffected > 0 {
		return notificationMarkResult{Updated: true, Found: true}, nil
	}

	// already read, or not addressed to this client
	var count int64
	if err := r.DB(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND client_id = ?", notificationID, clientID).
		Count(&count).Error; err != nil {
		return notificationMarkResult{}, err
	}
	return notificationMarkResult{Found: count > 0}, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, clientID string, now time.Time) (int64, error) {
	result := r.DB(ctx).
		Model(&models.Notification{}).
		Where("client_id = ? AND read_at IS NULL", clientID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteReadOlderThan removes notifications that were read before cutoff.
// Unread notifications are kept regardless of age.
func (r *repositoryImpl) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.DB(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
