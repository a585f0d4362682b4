package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/domeo/backoffice/pkg/pagination"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Bind returns a Base running on tx; a nil tx keeps the current connection.
func (b Base) Bind(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// NewestFirst orders rows by (created_at DESC, id DESC) and, when cursor is
// set, starts the page at the cursor row.
func NewestFirst(cursor *pagination.Cursor) func(*gorm.DB) *gorm.DB {
	return func(query *gorm.DB) *gorm.DB {
		if cursor != nil {
			query = query.Where(
				"(created_at < ?) OR (created_at = ? AND id <= ?)",
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}
		return query.Order("created_at DESC").Order("id DESC")
	}
}
