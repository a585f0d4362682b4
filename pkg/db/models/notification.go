package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/domeo/backoffice/pkg/enums"
)

// Notification stores in-app notifications addressed to a client.
type Notification struct {
	ID             uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ClientID       string                 `gorm:"column:client_id;type:text;not null;index"`
	Kind           enums.NotificationKind `gorm:"column:kind;type:text;not null"`
	Title          string                 `gorm:"column:title;type:text;not null"`
	Message        string                 `gorm:"column:message;type:text;not null"`
	DocumentID     *uuid.UUID             `gorm:"column:document_id;type:uuid"`
	DocumentNumber *string                `gorm:"column:document_number;type:text"`
	ReadAt         *time.Time             `gorm:"column:read_at"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
