// internal/models/webhook_event.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent records a processed processor event. The unique event id is
// what makes redelivery a no-op.
type WebhookEvent struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	EventID        string         `json:"event_id" gorm:"size:255;not null;uniqueIndex"`
	EventType      string         `json:"event_type" gorm:"size:100;not null;index"`
	SubscriptionID string         `json:"subscription_id" gorm:"size:255;index"`
	LicenseID      *uuid.UUID     `json:"license_id" gorm:"type:uuid;index"`
	Outcome        WebhookOutcome `json:"outcome" gorm:"type:varchar(20);not null"`
	Reason         string         `json:"reason" gorm:"size:100"`
	ReceivedAt     time.Time      `json:"received_at" gorm:"not null"`
}

func (WebhookEvent) TableName() string {
	return "processor_webhook_events"
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
