package documents

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
	"github.com/domeo/backoffice/pkg/logger"
)

// Match stages reported on reused documents.
const (
	StageExact    = "exact"
	StageFuzzy    = "fuzzy"
	StageConflict = "conflict"
)

// DefaultCandidateLimit bounds the fuzzy stage scan.
const DefaultCandidateLimit = 10

// totalTolerance is the window applied around a requested total.
var totalTolerance = decimal.New(1, -2)

// FindInput describes the cart a caller is about to turn into a document.
type FindInput struct {
	Type          enums.DocumentType
	ParentID      *uuid.UUID
	CartSessionID string
	ClientID      string
	Items         []NormalizedItem
	TotalAmount   float64
}

// Finder locates a prior document holding the same logical cart.
type Finder struct {
	repo           Repository
	candidateLimit int
	logg           *logger.Logger
}

// NewFinder builds a finder; a non-positive limit falls back to DefaultCandidateLimit.
func NewFinder(repo Repository, candidateLimit int, logg *logger.Logger) *Finder {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Finder{repo: repo, candidateLimit: candidateLimit, logg: logg}
}

// Find runs the exact-key stage, then the fuzzy stage. It returns the
// matching document and the stage that produced it, or nil when the cart is new.
func (f *Finder) Find(ctx context.Context, input FindInput) (*models.Document, string, error) {
	parentID := rootParent(input.Type, input.ParentID)

	exact := exactQuery{
		Type:      input.Type,
		ParentID:  parentID,
		SessionID: input.CartSessionID,
		MinTotal:  input.TotalAmount,
		MaxTotal:  input.TotalAmount,
	}
	if input.Type.ClientScoped() {
		clientID := input.ClientID
		exact.ClientID = &clientID
	} else {
		exact.MinTotal, exact.MaxTotal = totalWindow(input.TotalAmount)
	}

	doc, err := f.repo.FindExact(ctx, exact)
	if err != nil {
		return nil, "", err
	}
	if doc != nil && CompareCartData(input.Items, doc.CartData) {
		f.logg.Debug(ctx, "documents.finder.exact_match")
		return doc, StageExact, nil
	}

	if !input.Type.ClientScoped() {
		return nil, "", nil
	}

	minTotal, maxTotal := totalWindow(input.TotalAmount)
	candidates, err := f.repo.FindCandidates(ctx, candidateQuery{
		Type:     input.Type,
		ParentID: parentID,
		ClientID: input.ClientID,
		MinTotal: minTotal,
		MaxTotal: maxTotal,
		Limit:    f.candidateLimit,
	})
	if err != nil {
		return nil, "", err
	}
	for i := range candidates {
		if CompareCartData(input.Items, candidates[i].CartData) {
			f.logg.Debug(f.logg.WithField(ctx, "candidates", len(candidates)), "documents.finder.fuzzy_match")
			return &candidates[i], StageFuzzy, nil
		}
	}
	return nil, "", nil
}

// rootParent drops the parent of an order. Orders are root documents, so
// lookups, dedup keys and stored rows all carry a NULL parent for them.
func rootParent(docType enums.DocumentType, parentID *uuid.UUID) *uuid.UUID {
	if docType == enums.DocumentTypeOrder {
		return nil
	}
	return parentID
}

func totalWindow(total float64) (float64, float64) {
	value := decimal.NewFromFloat(total)
	return value.Sub(totalTolerance).InexactFloat64(), value.Add(totalTolerance).InexactFloat64()
}
