// internal/models/audit.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRecord is append-only. Rows are written in the same transaction as the
// license change they describe.
type AuditRecord struct {
	ID          uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	LicenseID   uuid.UUID        `json:"license_id" gorm:"type:uuid;not null;index"`
	ActorID     string           `json:"actor_id" gorm:"size:255;not null"`
	ActorRole   string           `json:"actor_role" gorm:"size:50;not null"`
	Action      AuditAction      `json:"action" gorm:"type:varchar(30);not null;index"`
	Reason      string           `json:"reason" gorm:"type:text"`
	BeforeState *LicenseSnapshot `json:"before_state" gorm:"type:jsonb"`
	AfterState  *LicenseSnapshot `json:"after_state" gorm:"type:jsonb"`
	EventID     *string          `json:"event_id,omitempty" gorm:"size:255;index"`
	OccurredAt  time.Time        `json:"occurred_at" gorm:"not null;index"`
}

func (AuditRecord) TableName() string {
	return "license_audit_records"
}

func (a *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// LicenseSnapshot is the serialized license state stored with an audit row.
type LicenseSnapshot struct {
	Status                  LicenseStatus `json:"status"`
	Tier                    string        `json:"tier"`
	ExpiresAt               *time.Time    `json:"expires_at"`
	CurrentPeriodEnd        *time.Time    `json:"current_period_end"`
	ProcessorSubscriptionID *string       `json:"processor_subscription_id"`
	Features                FeatureSet    `json:"features"`
	Limits                  Limits        `json:"limits"`
	Version                 int64         `json:"version"`
}

func (s LicenseSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *LicenseSnapshot) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}

	return json.Unmarshal(bytes, s)
}
