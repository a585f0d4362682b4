package documents

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/domeo/backoffice/api/validators"
	internaldocuments "github.com/domeo/backoffice/internal/documents"
	pkgerrors "github.com/domeo/backoffice/pkg/errors"
)

type createBatchRequest struct {
	CartSessionID     *string                          `json:"cart_session_id"`
	ClientID          string                           `json:"client_id" validate:"required"`
	Items             []internaldocuments.CartLineItem `json:"items" validate:"required"`
	TotalAmount       float64                          `json:"total_amount"`
	Subtotal          *float64                         `json:"subtotal"`
	TaxAmount         *float64                         `json:"tax_amount"`
	Notes             *string                          `json:"notes"`
	DocumentTypes     []string                         `json:"document_types"`
	CreatedBy         *string                          `json:"created_by"`
	ParentDocumentID  *string                          `json:"parent_document_id"`
	PreventDuplicates *bool                            `json:"prevent_duplicates"`
}

// toInput maps the payload onto the service input. A missing subtotal is
// derived as total minus tax.
func (req createBatchRequest) toInput() (internaldocuments.BatchInput, error) {
	input := internaldocuments.BatchInput{
		ClientID:      validators.SanitizeString(req.ClientID, validators.MaxIdentifierLen),
		Items:         req.Items,
		TotalAmount:   req.TotalAmount,
		Notes:         validators.SanitizeOptional(req.Notes, validators.MaxNotesLen),
		DocumentTypes: req.DocumentTypes,
	}
	if input.ClientID == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "client_id is required")
	}
	if req.CartSessionID != nil {
		input.CartSessionID = validators.SanitizeString(*req.CartSessionID, validators.MaxIdentifierLen)
	}
	if req.CreatedBy != nil {
		input.CreatedBy = validators.SanitizeString(*req.CreatedBy, validators.MaxIdentifierLen)
	}

	if req.TaxAmount != nil {
		input.TaxAmount = *req.TaxAmount
	}
	if req.Subtotal != nil {
		input.Subtotal = *req.Subtotal
	} else {
		input.Subtotal = decimal.NewFromFloat(req.TotalAmount).
			Sub(decimal.NewFromFloat(input.TaxAmount)).
			InexactFloat64()
	}

	if req.ParentDocumentID != nil && strings.TrimSpace(*req.ParentDocumentID) != "" {
		parentID, err := uuid.Parse(strings.TrimSpace(*req.ParentDocumentID))
		if err != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "parent_document_id must be a valid UUID").
				WithDetails(map[string]string{"parent_document_id": "must be a valid UUID"})
		}
		input.ParentDocumentID = &parentID
	}

	if req.PreventDuplicates != nil && !*req.PreventDuplicates {
		input.AllowDuplicates = true
	}
	return input, nil
}
