package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentLineItem snapshots one cart line on a document.
type DocumentLineItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID uuid.UUID `gorm:"column:document_id;type:uuid;not null;index"`
	Position   int       `gorm:"column:position;not null"`
	ProductID  string    `gorm:"column:product_id;type:text;not null"`
	ItemType   string    `gorm:"column:item_type;type:text;not null"`
	Model      string    `gorm:"column:model;type:text;not null"`
	Quantity   float64   `gorm:"column:quantity;type:double precision;not null"`
	UnitPrice  float64   `gorm:"column:unit_price;type:double precision;not null"`
	TotalPrice float64   `gorm:"column:total_price;type:double precision;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (DocumentLineItem) TableName() string {
	return "document_line_items"
}

func (i *DocumentLineItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
