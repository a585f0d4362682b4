package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"github.com/domeo/backoffice/pkg/pagination"
)

// Service records document notifications and serves the client inbox.
type Service interface {
	DocumentCreated(ctx context.Context, doc *models.Document) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, clientID string, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, clientID string) (int64, error)
	PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	ClientID   string
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification
	Cursor string
}

type template struct {
	title   string
	message string
}

var templates = map[enums.NotificationKind]template{
	enums.NotificationKindQuoteGenerated:         {title: "Quote generated", message: "Quote %s is ready"},
	enums.NotificationKindInvoiceGenerated:       {title: "Invoice generated", message: "Invoice %s is ready"},
	enums.NotificationKindOrderCreated:           {title: "Order created", message: "Order %s was created"},
	enums.NotificationKindSupplierOrderGenerated: {title: "Supplier order generated", message: "Supplier order %s was sent for processing"},
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) DocumentCreated(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "document required")
	}
	kind, ok := enums.NotificationKindFor(doc.Type)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("no notification for document type %q", doc.Type))
	}
	tmpl := templates[kind]

	docID := doc.ID
	number := doc.Number
	notification := &models.Notification{
		ClientID:       doc.ClientID,
		Kind:           kind,
		Title:          tmpl.title,
		Message:        fmt.Sprintf(tmpl.message, doc.Number),
		DocumentID:     &docID,
		DocumentNumber: &number,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	clientID := strings.TrimSpace(params.ClientID)
	if clientID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_id is required")
	}

	query := listNotificationsParams{
		ClientID:   clientID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, clientID string, notificationID uuid.UUID) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "client_id is required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, clientID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, clientID string) (int64, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "client_id is required")
	}

	count, err := s.repo.MarkAllRead(ctx, clientID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

// PurgeRead deletes notifications read more than olderThan ago.
func (s *service) PurgeRead(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "retention must be positive")
	}
	cutoff := s.now().UTC().Add(-olderThan)
	deleted, err := s.repo.DeleteReadOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge read notifications")
	}
	return deleted, nil
}
