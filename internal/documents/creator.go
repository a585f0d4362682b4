package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/pkg/db/models"
	"github.com/domeo/backoffice/pkg/enums"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries everything persisted on a new document.
type CreateInput struct {
	Type          enums.DocumentType
	ParentID      *uuid.UUID
	CartSessionID string
	ClientID      string
	Items         []NormalizedItem
	TotalAmount   float64
	Subtotal      float64
	TaxAmount     float64
	Notes         *string
	CreatedBy     string
	// DedupKey is left empty when duplicates are allowed.
	DedupKey string
}

// Creator persists documents unconditionally; de-duplication happens before it.
type Creator struct {
	repo Repository
	tx   txRunner
	now  func() time.Time
}

func NewCreator(repo Repository, tx txRunner) *Creator {
	return &Creator{repo: repo, tx: tx, now: time.Now}
}

// Create writes the header and one line item per cart line in a single transaction.
func (c *Creator) Create(ctx context.Context, input CreateInput) (*models.Document, error) {
	doc, err := c.build(input)
	if err != nil {
		return nil, err
	}
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return c.repo.WithTx(tx).Create(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Creator) build(input CreateInput) (*models.Document, error) {
	cartData, err := encodeCartData(input.Items, input.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("encode cart data: %w", err)
	}

	doc := &models.Document{
		ID:               uuid.New(),
		Type:             input.Type,
		Number:           documentNumber(input.Type, c.now()),
		ParentDocumentID: input.ParentID,
		CartSessionID:    stringPtr(input.CartSessionID),
		ClientID:         input.ClientID,
		TotalAmount:      input.TotalAmount,
		Subtotal:         input.Subtotal,
		TaxAmount:        input.TaxAmount,
		CartData:         datatypes.JSON(cartData),
		DedupKey:         stringPtr(input.DedupKey),
		Notes:            input.Notes,
		CreatedBy:        input.CreatedBy,
	}

	doc.LineItems = make([]models.DocumentLineItem, 0, len(input.Items))
	for i, item := range input.Items {
		doc.LineItems = append(doc.LineItems, models.DocumentLineItem{
			DocumentID: doc.ID,
			Position:   i,
			ProductID:  item.ID,
			ItemType:   item.Type,
			Model:      item.Model,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: lineTotal(item),
		})
	}
	return doc, nil
}

// documentNumber renders <prefix>-<unix millis>.
func documentNumber(docType enums.DocumentType, at time.Time) string {
	return fmt.Sprintf("%s-%d", docType.NumberPrefix(), at.UnixMilli())
}

func lineTotal(item NormalizedItem) float64 {
	return decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromFloat(item.Quantity)).InexactFloat64()
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
