// internal/licensing/verdict.go
package licensing

import (
	"fmt"

	"github.com/javajoker/license-authority/internal/models"
)

// ReasonCode is the machine-readable explanation attached to every Verdict.
type ReasonCode string

const (
	ReasonNoLicense               ReasonCode = "no_license"
	ReasonUnknownTier             ReasonCode = "unknown_tier"
	ReasonDBPerpetual             ReasonCode = "db_perpetual"
	ReasonDBActive                ReasonCode = "db_active"
	ReasonLicenseExpired          ReasonCode = "license_expired"
	ReasonMissingSubscriptionID   ReasonCode = "missing_subscription_id"
	ReasonMissingCurrentPeriodEnd ReasonCode = "missing_current_period_end"
	ReasonSubscriptionExpired     ReasonCode = "subscription_expired"
	ReasonSubscriptionActive      ReasonCode = "subscription_active"
)

const statusReasonPrefix = "status_"

// StatusReason builds the denial reason for a non-granting status.
func StatusReason(status models.LicenseStatus) ReasonCode {
	return ReasonCode(statusReasonPrefix + string(status))
}

// Verdict is the result of resolving a license at an instant.
type Verdict struct {
	Allowed   bool            `json:"allowed"`
	Reason    ReasonCode      `json:"reason"`
	Authority AuthorityDomain `json:"authority"`
}

// Err converts a denial into its typed error. Allowed verdicts return nil.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}

	switch v.Reason {
	case ReasonNoLicense:
		return ErrNoLicense
	case ReasonUnknownTier:
		return ErrUnknownTier
	case ReasonLicenseExpired:
		return ErrLicenseExpired
	case ReasonMissingSubscriptionID:
		return ErrMissingSubscriptionID
	case ReasonMissingCurrentPeriodEnd:
		return ErrMissingPeriodEnd
	case ReasonSubscriptionExpired:
		return ErrSubscriptionExpired
	}
	return fmt.Errorf("%w: %s", ErrStatusDenied, v.Reason)
}
