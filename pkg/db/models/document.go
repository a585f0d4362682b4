package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/pkg/enums"
)

// Document is the shared header for quotes, invoices, orders and supplier orders.
type Document struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Type             enums.DocumentType `gorm:"column:type;type:text;not null;index:idx_documents_client_lookup,priority:1"`
	Number           string             `gorm:"column:number;type:text;not null"`
	ParentDocumentID *uuid.UUID         `gorm:"column:parent_document_id;type:uuid;index"`
	CartSessionID    *string            `gorm:"column:cart_session_id;type:text"`
	ClientID         string             `gorm:"column:client_id;type:text;not null;index:idx_documents_client_lookup,priority:2"`
	TotalAmount      float64            `gorm:"column:total_amount;type:double precision;not null"`
	Subtotal         float64            `gorm:"column:subtotal;type:double precision;not null;default:0"`
	TaxAmount        float64            `gorm:"column:tax_amount;type:double precision;not null;default:0"`
	CartData         datatypes.JSON     `gorm:"column:cart_data"`
	DedupKey         *string            `gorm:"column:dedup_key;type:text;uniqueIndex:idx_documents_dedup_key"`
	Notes            *string            `gorm:"column:notes;type:text"`
	CreatedBy        string             `gorm:"column:created_by;type:text;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime;index:idx_documents_client_lookup,priority:3"`
	LineItems        []DocumentLineItem `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE"`
}

func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns the primary key so SQLite and Postgres behave the same.
func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
