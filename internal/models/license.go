// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	BaseModel
	TenantID                uuid.UUID     `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Status                  LicenseStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Tier                    string        `json:"tier" gorm:"size:50;not null"`
	ExpiresAt               *time.Time    `json:"expires_at"`
	CurrentPeriodEnd        *time.Time    `json:"current_period_end"`
	ProcessorSubscriptionID *string       `json:"processor_subscription_id" gorm:"size:255;uniqueIndex"`
	ProcessorCustomerID     *string       `json:"processor_customer_id,omitempty" gorm:"size:255"`
	Features                FeatureSet    `json:"features" gorm:"type:jsonb"`
	Limits                  Limits        `json:"limits" gorm:"embedded"`
	Version                 int64         `json:"version" gorm:"not null;default:1"`
}

// Limits are numeric caps; nil means unlimited.
type Limits struct {
	MaxUsers    *int `json:"max_users" gorm:"column:max_users"`
	MaxStudents *int `json:"max_students" gorm:"column:max_students"`
	MaxPrograms *int `json:"max_programs" gorm:"column:max_programs"`
}

func (l Limits) clone() Limits {
	return Limits{
		MaxUsers:    cloneInt(l.MaxUsers),
		MaxStudents: cloneInt(l.MaxStudents),
		MaxPrograms: cloneInt(l.MaxPrograms),
	}
}

// Clone returns a deep copy of the license.
func (l *License) Clone() *License {
	if l == nil {
		return nil
	}
	out := *l
	out.ExpiresAt = cloneTime(l.ExpiresAt)
	out.CurrentPeriodEnd = cloneTime(l.CurrentPeriodEnd)
	out.ProcessorSubscriptionID = cloneString(l.ProcessorSubscriptionID)
	out.ProcessorCustomerID = cloneString(l.ProcessorCustomerID)
	out.Features = l.Features.Clone()
	out.Limits = l.Limits.clone()
	return &out
}

// Snapshot captures the mutable state recorded in audit before/after columns.
func (l *License) Snapshot() LicenseSnapshot {
	return LicenseSnapshot{
		Status:                  l.Status,
		Tier:                    l.Tier,
		ExpiresAt:               cloneTime(l.ExpiresAt),
		CurrentPeriodEnd:        cloneTime(l.CurrentPeriodEnd),
		ProcessorSubscriptionID: cloneString(l.ProcessorSubscriptionID),
		Features:                l.Features.Clone(),
		Limits:                  l.Limits.clone(),
		Version:                 l.Version,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
