package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/internal/repo"
	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
	"github.com/domeo/backoffice/pkg/pagination"
)

// Repository exposes persistence helpers for documents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindExact(ctx context.Context, query exactQuery) (*models.Document, error)
	FindCandidates(ctx context.Context, query candidateQuery) ([]models.Document, error)
	FindByDedupKey(ctx context.Context, key string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID, withItems bool) (*models.Document, error)
	CountChildren(ctx context.Context, parentID uuid.UUID, docType enums.DocumentType) (int64, error)
	ListChildren(ctx context.Context, parentIDs []uuid.UUID) ([]models.Document, error)
	List(ctx context.Context, params listDocumentsParams) ([]models.Document, *pagination.Cursor, error)
}

// exactQuery selects the newest document matching the full key. A nil
// ClientID disables client scoping; MinTotal == MaxTotal is an exact match.
type exactQuery struct {
	Type      enums.DocumentType
	ParentID  *uuid.UUID
	SessionID string
	ClientID  *string
	MinTotal  float64
	MaxTotal  float64
}

// candidateQuery selects fuzzy-stage candidates, newest first.
type candidateQuery struct {
	Type     enums.DocumentType
	ParentID *uuid.UUID
	ClientID string
	MinTotal float64
	MaxTotal float64
	Limit    int
}

type listDocumentsParams struct {
	ClientID string
	Type     enums.DocumentType
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	repo.Base
}

// NewRepository returns a documents repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) FindExact(ctx context.Context, query exactQuery) (*models.Document, error) {
	q := r.DB(ctx).
		Where("type = ?", query.Type).
		Where("cart_session_id = ?", query.SessionID).
		Where("total_amount >= ? AND total_amount <= ?", query.MinTotal, query.MaxTotal).
		Scopes(parentScope(query.ParentID))
	if query.ClientID != nil {
		q = q.Where("client_id = ?", *query.ClientID)
	}

	var doc models.Document
	err := q.Order("created_at DESC").Order("id DESC").Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *repository) FindCandidates(ctx context.Context, query candidateQuery) ([]models.Document, error) {
	var docs []models.Document
	err := r.DB(ctx).
		Where("type = ?", query.Type).
		Where("client_id = ?", query.ClientID).
		Where("total_amount >= ? AND total_amount <= ?", query.MinTotal, query.MaxTotal).
		Scopes(parentScope(query.ParentID)).
		Order("created_at DESC").
		Order("id DESC").
		Limit(query.Limit).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *repository) FindByDedupKey(ctx context.Context, key string) (*models.Document, error) {
	var doc models.Document
	err := r.DB(ctx).Where("dedup_key = ?", key).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Create inserts the header and its line items; callers wrap it in a
// transaction so both land together.
func (r *repository) Create(ctx context.Context, doc *models.Document) error {
	return r.DB(ctx).Create(doc).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID, withItems bool) (*models.Document, error) {
	q := r.DB(ctx)
	if withItems {
		q = q.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
	}
	var doc models.Document
	if err := q.Where("id = ?", id).Take(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *repository) CountChildren(ctx context.Context, parentID uuid.UUID, docType enums.DocumentType) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Document{}).
		Where("parent_document_id = ? AND type = ?", parentID, docType).
		Count(&count).Error
	return count, err
}

func (r *repository) ListChildren(ctx context.Context, parentIDs []uuid.UUID) ([]models.Document, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var docs []models.Document
	err := r.DB(ctx).
		Where("parent_document_id IN ?", parentIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&docs).Error
	return docs, err
}

func (r *repository) List(ctx context.Context, params listDocumentsParams) ([]models.Document, *pagination.Cursor, error) {
	q := r.DB(ctx).Model(&models.Document{})
	if params.ClientID != "" {
		q = q.Where("client_id = ?", params.ClientID)
	}
	if params.Type != "" {
		q = q.Where("type = ?", params.Type)
	}

	var docs []models.Document
	err := q.Scopes(repo.NewestFirst(params.Cursor)).
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&docs).Error
	if err != nil {
		return nil, nil, err
	}

	page, next := pagination.Trim(docs, params.Limit, func(doc models.Document) pagination.Cursor {
		return pagination.Cursor{CreatedAt: doc.CreatedAt, ID: doc.ID}
	})
	return page, next, nil
}

func parentScope(parentID *uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if parentID == nil {
			return db.Where("parent_document_id IS NULL")
		}
		return db.Where("parent_document_id = ?", *parentID)
	}
}
