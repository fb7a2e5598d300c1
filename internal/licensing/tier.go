// internal/licensing/tier.go
package licensing

import "fmt"

// TierCatalogVersion identifies the closed tier list below. Bump it whenever a
// tier is added or moved between authority domains.
const TierCatalogVersion = "2025-01"

// AuthorityDomain names the source of truth for a license's validity window.
type AuthorityDomain string

const (
	AuthorityNone      AuthorityDomain = "none"
	AuthorityUnknown   AuthorityDomain = "unknown"
	AuthorityDatabase  AuthorityDomain = "database-authoritative"
	AuthorityProcessor AuthorityDomain = "processor-authoritative"
)

const (
	TierTrial          = "trial"
	TierLifetime       = "lifetime"
	TierBasic          = "basic"
	TierManagedMonthly = "managed_monthly"
	TierManagedAnnual  = "managed_annual"
	TierProMonthly     = "pro_monthly"
)

// Classify maps a tier to its authority domain. Tiers outside the catalog
// return ErrUnknownTier; new tiers must be added to a case here.
func Classify(tier string) (AuthorityDomain, error) {
	switch tier {
	case TierTrial, TierLifetime, TierBasic:
		return AuthorityDatabase, nil
	case TierManagedMonthly, TierManagedAnnual, TierProMonthly:
		return AuthorityProcessor, nil
	}
	return AuthorityUnknown, fmt.Errorf("%w: %q (catalog %s)", ErrUnknownTier, tier, TierCatalogVersion)
}

// KnownTiers returns the catalog in a stable order.
func KnownTiers() []string {
	return []string{
		TierTrial,
		TierLifetime,
		TierBasic,
		TierManagedMonthly,
		TierManagedAnnual,
		TierProMonthly,
	}
}

// IsProcessorTier reports whether billing events may touch licenses of this tier.
func IsProcessorTier(tier string) bool {
	domain, err := Classify(tier)
	return err == nil && domain == AuthorityProcessor
}
