package documents

import (
	"encoding/json"
	"time"

	internaldocuments "github.com/domeo/backoffice/internal/documents"
	"github.com/domeo/backoffice/pkg/db/models"
)

type lineItemDTO struct {
	Position   int     `json:"position"`
	ProductID  string  `json:"product_id"`
	ItemType   string  `json:"item_type"`
	Model      string  `json:"model"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

type documentDTO struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	Number           string          `json:"number"`
	ParentDocumentID *string         `json:"parent_document_id"`
	CartSessionID    *string         `json:"cart_session_id"`
	ClientID         string          `json:"client_id"`
	TotalAmount      float64         `json:"total_amount"`
	Subtotal         float64         `json:"subtotal"`
	TaxAmount        float64         `json:"tax_amount"`
	CartData         json.RawMessage `json:"cart_data,omitempty"`
	Notes            *string         `json:"notes"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        string          `json:"created_at"`
	LineItems        []lineItemDTO   `json:"line_items,omitempty"`
}

type chainEntryDTO struct {
	Position int         `json:"position"`
	Relation string      `json:"relation"`
	Document documentDTO `json:"document"`
}

type chainDTO struct {
	DocumentID string          `json:"document_id"`
	Entries    []chainEntryDTO `json:"entries"`
}

type documentListDTO struct {
	Items  []documentDTO `json:"items"`
	Cursor string        `json:"cursor,omitempty"`
}

func toDocumentDTO(doc models.Document, withCart bool) documentDTO {
	dto := documentDTO{
		ID:            doc.ID.String(),
		Type:          doc.Type.String(),
		Number:        doc.Number,
		CartSessionID: doc.CartSessionID,
		ClientID:      doc.ClientID,
		TotalAmount:   doc.TotalAmount,
		Subtotal:      doc.Subtotal,
		TaxAmount:     doc.TaxAmount,
		Notes:         doc.Notes,
		CreatedBy:     doc.CreatedBy,
		CreatedAt:     doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if doc.ParentDocumentID != nil {
		parent := doc.ParentDocumentID.String()
		dto.ParentDocumentID = &parent
	}
	if withCart && len(doc.CartData) > 0 {
		dto.CartData = json.RawMessage(doc.CartData)
	}
	for _, item := range doc.LineItems {
		dto.LineItems = append(dto.LineItems, lineItemDTO{
			Position:   item.Position,
			ProductID:  item.ProductID,
			ItemType:   item.ItemType,
			Model:      item.Model,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		})
	}
	return dto
}

func toChainDTO(chain *internaldocuments.Chain) chainDTO {
	out := chainDTO{
		DocumentID: chain.DocumentID.String(),
		Entries:    make([]chainEntryDTO, 0, len(chain.Entries)),
	}
	for _, entry := range chain.Entries {
		out.Entries = append(out.Entries, chainEntryDTO{
			Position: entry.Position,
			Relation: entry.Relation,
			Document: toDocumentDTO(entry.Document, false),
		})
	}
	return out
}

func toListDTO(result *internaldocuments.ListResult) documentListDTO {
	out := documentListDTO{
		Items:  make([]documentDTO, 0, len(result.Items)),
		Cursor: result.Cursor,
	}
	for _, doc := range result.Items {
		out.Items = append(out.Items, toDocumentDTO(doc, false))
	}
	return out
}
