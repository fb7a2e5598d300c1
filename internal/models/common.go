// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// FeatureSet holds named capability flags for a license.
type FeatureSet map[string]bool

func (f FeatureSet) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *FeatureSet) Scan(value interface{}) error {
	if value == nil {
		*f = FeatureSet{}
		return nil
	}

	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}

	return json.Unmarshal(bytes, f)
}

// Clone returns an independent copy so snapshots never alias live state.
func (f FeatureSet) Clone() FeatureSet {
	out := make(FeatureSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSON column type %T", value)
	}
}

// Enums
type LicenseStatus string

const (
	LicenseStatusPending   LicenseStatus = "pending"
	LicenseStatusTrialing  LicenseStatus = "trialing"
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusRevoked   LicenseStatus = "revoked"
	LicenseStatusCancelled LicenseStatus = "cancelled"
)

func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseStatusPending, LicenseStatusTrialing, LicenseStatusActive,
		LicenseStatusSuspended, LicenseStatusRevoked, LicenseStatusCancelled:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s LicenseStatus) Terminal() bool {
	return s == LicenseStatusRevoked || s == LicenseStatusCancelled
}

type AuditAction string

const (
	AuditActionSuspend        AuditAction = "suspend"
	AuditActionReactivate     AuditAction = "reactivate"
	AuditActionRevoke         AuditAction = "revoke"
	AuditActionUpdateFeatures AuditAction = "update_features"
	AuditActionUpdateLimits   AuditAction = "update_limits"
	AuditActionWebhookSync    AuditAction = "webhook_sync"
)

type WebhookOutcome string

const (
	WebhookOutcomeApplied   WebhookOutcome = "applied"
	WebhookOutcomeDuplicate WebhookOutcome = "duplicate"
	WebhookOutcomeRejected  WebhookOutcome = "rejected"
	WebhookOutcomeIgnored   WebhookOutcome = "ignored"
)
