package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/pkg/db"
	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
	"github.com/domeo/backoffice/pkg/logger"
	"github.com/domeo/backoffice/pkg/metrics"
	"github.com/domeo/backoffice/pkg/pagination"
)

// DefaultCreatedBy is recorded when the caller does not name an author.
const DefaultCreatedBy = "system"

// DefaultDocumentTypes are generated when a batch names no types.
var DefaultDocumentTypes = []enums.DocumentType{enums.DocumentTypeQuote, enums.DocumentTypeInvoice}

// Notifier is told about every newly created document.
type Notifier interface {
	DocumentCreated(ctx context.Context, doc *models.Document) error
}

// Service defines document generation and read operations.
type Service interface {
	CreateBatch(ctx context.Context, input BatchInput) (*BatchResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	Chain(ctx context.Context, id uuid.UUID) (*Chain, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// Options carries the optional collaborators of the service.
type Options struct {
	Locker         Locker
	Notifier       Notifier
	Metrics        *metrics.DocumentMetrics
	Logger         *logger.Logger
	CandidateLimit int
	DefaultTypes   []enums.DocumentType
}

// BatchInput is one create-batch request.
type BatchInput struct {
	CartSessionID    string
	ClientID         string
	ParentDocumentID *uuid.UUID
	Items            []CartLineItem
	TotalAmount      float64
	Subtotal         float64
	TaxAmount        float64
	Notes            *string
	DocumentTypes    []string
	CreatedBy        string
	// AllowDuplicates skips the finder and stores no dedup key.
	AllowDuplicates bool
}

// DocumentResult describes the document returned for one requested type.
type DocumentResult struct {
	Type           enums.DocumentType `json:"type"`
	DocumentID     uuid.UUID          `json:"documentId"`
	DocumentNumber string             `json:"documentNumber"`
	IsNew          bool               `json:"isNew"`
	Message        string             `json:"message"`
}

// DocumentError reports a type that could not be produced.
type DocumentError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// BatchResult aggregates per-type outcomes.
type BatchResult struct {
	Success       bool             `json:"success"`
	CartSessionID string           `json:"cart_session_id"`
	Results       []DocumentResult `json:"results"`
	Errors        []DocumentError  `json:"errors"`
	Message       string           `json:"message"`
}

// ListParams filters the document listing.
type ListParams struct {
	ClientID string
	Type     string
	Limit    int
	Cursor   string
}

// ListResult wraps returned documents and the cursor for the next page.
type ListResult struct {
	Items  []models.Document
	Cursor string
}

type service struct {
	repo         Repository
	finder       *Finder
	creator      *Creator
	locker       Locker
	notifier     Notifier
	metrics      *metrics.DocumentMetrics
	logg         *logger.Logger
	defaultTypes []enums.DocumentType
	now          func() time.Time
}

// NewService wires the document generation flow.
func NewService(repo Repository, tx txRunner, opts Options) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "documents repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}

	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	locker := opts.Locker
	if locker == nil {
		locker = NopLocker{}
	}
	defaults := opts.DefaultTypes
	if len(defaults) == 0 {
		defaults = DefaultDocumentTypes
	}

	return &service{
		repo:         repo,
		finder:       NewFinder(repo, opts.CandidateLimit, logg),
		creator:      NewCreator(repo, tx),
		locker:       locker,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		logg:         logg,
		defaultTypes: defaults,
		now:          time.Now,
	}, nil
}

func (s *service) CreateBatch(ctx context.Context, input BatchInput) (*BatchResult, error) {
	input.ClientID = strings.TrimSpace(input.ClientID)
	if input.ClientID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client_id is required")
	}
	if input.Items == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items must be an array")
	}

	started := s.now()
	input.CartSessionID = strings.TrimSpace(input.CartSessionID)
	if input.CartSessionID == "" {
		input.CartSessionID = NewCartSessionID()
	}
	input.CreatedBy = strings.TrimSpace(input.CreatedBy)
	if input.CreatedBy == "" {
		input.CreatedBy = DefaultCreatedBy
	}

	ctx = s.logg.WithFields(s.logg.WithClientID(ctx, input.ClientID), map[string]any{
		"cart_session_id": input.CartSessionID,
	})

	items := NormalizeItems(input.Items)
	result := &BatchResult{
		CartSessionID: input.CartSessionID,
		Results:       []DocumentResult{},
		Errors:        []DocumentError{},
	}

	for _, requested := range s.requestedTypes(input.DocumentTypes) {
		docType, err := enums.ParseDocumentType(requested)
		if err != nil {
			result.Errors = append(result.Errors, DocumentError{Type: requested, Error: "unsupported document type"})
			s.metrics.IncFailed("unsupported")
			continue
		}

		typeCtx := s.logg.WithDocumentType(ctx, docType.String())
		entry, err := s.produce(typeCtx, input, items, docType)
		if err != nil {
			s.logg.Error(typeCtx, "documents.batch.type_failed", err)
			s.metrics.IncFailed(docType.String())
			result.Errors = append(result.Errors, DocumentError{Type: docType.String(), Error: publicMessage(err)})
			continue
		}
		result.Results = append(result.Results, entry)
	}

	result.Success = len(result.Errors) == 0
	result.Message = batchMessage(result)

	outcome := "success"
	if !result.Success {
		outcome = "partial"
	}
	s.metrics.ObserveBatch(outcome, s.now().Sub(started))
	return result, nil
}

// produce runs find-or-create for one document type.
func (s *service) produce(ctx context.Context, input BatchInput, items []NormalizedItem, docType enums.DocumentType) (DocumentResult, error) {
	parentID := rootParent(docType, input.ParentDocumentID)
	fingerprint := cartFingerprint{
		Type:      docType,
		ClientID:  input.ClientID,
		ParentID:  parentID,
		SessionID: input.CartSessionID,
		Total:     input.TotalAmount,
		Items:     items,
	}

	dedupKey := ""
	if !input.AllowDuplicates {
		dedupKey = fingerprint.DedupKey()

		release, err := s.locker.Lock(ctx, fingerprint.LockName())
		if err != nil {
			// the unique dedup_key index still guards exact duplicates
			s.logg.Warn(s.logg.WithField(ctx, "lock_error", err.Error()), "documents.lock.unavailable")
		} else {
			defer release(context.WithoutCancel(ctx))
		}

		existing, stage, err := s.finder.Find(ctx, FindInput{
			Type:          docType,
			ParentID:      parentID,
			CartSessionID: input.CartSessionID,
			ClientID:      input.ClientID,
			Items:         items,
			TotalAmount:   input.TotalAmount,
		})
		if err != nil {
			return DocumentResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("find existing %s", docLabel(docType)))
		}
		if existing != nil {
			return s.reused(ctx, existing, stage), nil
		}
	}

	if parentID != nil {
		if err := s.validateParent(ctx, docType, *parentID); err != nil {
			return DocumentResult{}, err
		}
	}

	doc, err := s.creator.Create(ctx, CreateInput{
		Type:          docType,
		ParentID:      parentID,
		CartSessionID: input.CartSessionID,
		ClientID:      input.ClientID,
		Items:         items,
		TotalAmount:   input.TotalAmount,
		Subtotal:      input.Subtotal,
		TaxAmount:     input.TaxAmount,
		Notes:         input.Notes,
		CreatedBy:     input.CreatedBy,
		DedupKey:      dedupKey,
	})
	if err != nil {
		if dedupKey != "" && db.IsUniqueViolation(err, "") {
			winner, findErr := s.repo.FindByDedupKey(ctx, dedupKey)
			if findErr == nil && winner != nil {
				return s.reused(ctx, winner, StageConflict), nil
			}
		}
		return DocumentResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("create %s", docLabel(docType)))
	}

	s.metrics.IncCreated(docType.String())
	s.logg.Info(s.logg.WithField(ctx, "document_number", doc.Number), "documents.created")
	s.notify(ctx, doc)

	return DocumentResult{
		Type:           doc.Type,
		DocumentID:     doc.ID,
		DocumentNumber: doc.Number,
		IsNew:          true,
		Message:        fmt.Sprintf("created %s %s", docLabel(doc.Type), doc.Number),
	}, nil
}

func (s *service) reused(ctx context.Context, doc *models.Document, stage string) DocumentResult {
	s.metrics.IncReused(doc.Type.String(), stage)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"document_number": doc.Number,
		"match_stage":     stage,
	}), "documents.reused")
	return DocumentResult{
		Type:           doc.Type,
		DocumentID:     doc.ID,
		DocumentNumber: doc.Number,
		IsNew:          false,
		Message:        fmt.Sprintf("reused existing %s %s", docLabel(doc.Type), doc.Number),
	}
}

// validateParent enforces that quotes and invoices derive from an order and
// that an order carries at most one invoice.
func (s *service) validateParent(ctx context.Context, docType enums.DocumentType, parentID uuid.UUID) error {
	if docType != enums.DocumentTypeQuote && docType != enums.DocumentTypeInvoice {
		return nil
	}

	parent, err := s.repo.GetByID(ctx, parentID, false)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && parent.Type != enums.DocumentTypeOrder) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("parent order %s not found", parentID))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load parent document")
	}

	if docType == enums.DocumentTypeInvoice {
		count, err := s.repo.CountChildren(ctx, parentID, enums.DocumentTypeInvoice)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count parent invoices")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order %s already has an invoice", parentID))
		}
	}
	return nil
}

func (s *service) notify(ctx context.Context, doc *models.Document) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.DocumentCreated(ctx, doc); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "documents.notify_failed")
	}
}

func (s *service) requestedTypes(raw []string) []string {
	source := raw
	if len(source) == 0 {
		source = make([]string, 0, len(s.defaultTypes))
		for _, docType := range s.defaultTypes {
			source = append(source, docType.String())
		}
	}

	seen := make(map[string]struct{}, len(source))
	out := make([]string, 0, len(source))
	for _, value := range source {
		key := strings.ToLower(strings.TrimSpace(value))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, value)
	}
	return out
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document id required")
	}
	doc, err := s.repo.GetByID(ctx, id, true)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load document")
	}
	return doc, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listDocumentsParams{
		ClientID: strings.TrimSpace(params.ClientID),
		Limit:    params.Limit,
	}
	if strings.TrimSpace(params.Type) != "" {
		docType, err := enums.ParseDocumentType(params.Type)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document type")
		}
		query.Type = docType
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list documents")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// NewCartSessionID generates the grouping id used when a client sends none.
func NewCartSessionID() string {
	return "cart_" + uuid.NewString()
}

func docLabel(docType enums.DocumentType) string {
	return strings.ReplaceAll(docType.String(), "_", " ")
}

func publicMessage(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		if pkgerrors.MetadataFor(typed.Code()).HTTPStatus < 500 {
			return typed.Message()
		}
		return typed.Message() + " failed"
	}
	return "document creation failed"
}

func batchMessage(result *BatchResult) string {
	created, reused := 0, 0
	for _, entry := range result.Results {
		if entry.IsNew {
			created++
		} else {
			reused++
		}
	}
	msg := fmt.Sprintf("%d created, %d reused", created, reused)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf(", %d failed", len(result.Errors))
	}
	return msg
}
