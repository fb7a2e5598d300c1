// internal/licensing/resolver.go
package licensing

import (
	"time"

	"github.com/javajoker/license-authority/internal/models"
)

// Resolve decides whether lic grants access at now. It reads lic and never
// writes to it. The first matching rule wins.
func Resolve(lic *models.License, now time.Time) Verdict {
	if lic == nil {
		return Verdict{Allowed: false, Reason: ReasonNoLicense, Authority: AuthorityNone}
	}

	domain, classifyErr := Classify(lic.Tier)

	if lic.Status != models.LicenseStatusActive && lic.Status != models.LicenseStatusTrialing {
		return Verdict{Allowed: false, Reason: StatusReason(lic.Status), Authority: domain}
	}

	if classifyErr != nil {
		return Verdict{Allowed: false, Reason: ReasonUnknownTier, Authority: AuthorityUnknown}
	}

	switch domain {
	case AuthorityDatabase:
		return resolveDatabase(lic, now)
	case AuthorityProcessor:
		return resolveProcessor(lic, now)
	}
	return Verdict{Allowed: false, Reason: ReasonUnknownTier, Authority: AuthorityUnknown}
}

// current_period_end is ignored for database tiers.
func resolveDatabase(lic *models.License, now time.Time) Verdict {
	if lic.ExpiresAt == nil {
		return Verdict{Allowed: true, Reason: ReasonDBPerpetual, Authority: AuthorityDatabase}
	}
	if lic.ExpiresAt.After(now) {
		return Verdict{Allowed: true, Reason: ReasonDBActive, Authority: AuthorityDatabase}
	}
	return Verdict{Allowed: false, Reason: ReasonLicenseExpired, Authority: AuthorityDatabase}
}

// expires_at is ignored for processor tiers.
func resolveProcessor(lic *models.License, now time.Time) Verdict {
	if lic.ProcessorSubscriptionID == nil || *lic.ProcessorSubscriptionID == "" {
		return Verdict{Allowed: false, Reason: ReasonMissingSubscriptionID, Authority: AuthorityProcessor}
	}
	if lic.CurrentPeriodEnd == nil {
		return Verdict{Allowed: false, Reason: ReasonMissingCurrentPeriodEnd, Authority: AuthorityProcessor}
	}
	if !lic.CurrentPeriodEnd.After(now) {
		return Verdict{Allowed: false, Reason: ReasonSubscriptionExpired, Authority: AuthorityProcessor}
	}
	return Verdict{Allowed: true, Reason: ReasonSubscriptionActive, Authority: AuthorityProcessor}
}
