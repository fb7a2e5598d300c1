// internal/licensing/resolver_test.go
package licensing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/javajoker/license-authority/internal/models"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func strPtr(s string) *string { return &s }

func newLicense(tier string, status models.LicenseStatus) *models.License {
	return &models.License{
		BaseModel: models.BaseModel{ID: uuid.New()},
		TenantID:  uuid.New(),
		Status:    status,
		Tier:      tier,
		Features:  models.FeatureSet{},
		Version:   1,
	}
}

func TestClassifyKnownTiers(t *testing.T) {
	for _, tier := range KnownTiers() {
		domain, err := Classify(tier)
		assert.NoError(t, err, tier)
		assert.Contains(t, []AuthorityDomain{AuthorityDatabase, AuthorityProcessor}, domain, tier)
	}
}

func TestClassifyUnknownTier(t *testing.T) {
	domain, err := Classify("enterprise_plus")
	assert.True(t, errors.Is(err, ErrUnknownTier))
	assert.Equal(t, AuthorityUnknown, domain)

	_, err = Classify("")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestResolve(t *testing.T) {
	future := fixedNow.Add(24 * time.Hour)
	past := fixedNow.Add(-time.Hour)

	tests := []struct {
		name    string
		license func() *models.License
		want    Verdict
	}{
		{
			name:    "nil license",
			license: func() *models.License { return nil },
			want:    Verdict{Allowed: false, Reason: ReasonNoLicense, Authority: AuthorityNone},
		},
		{
			name: "scenario A trial with future expiry",
			license: func() *models.License {
				l := newLicense(TierTrial, models.LicenseStatusActive)
				l.ExpiresAt = timePtr(future)
				return l
			},
			want: Verdict{Allowed: true, Reason: ReasonDBActive, Authority: AuthorityDatabase},
		},
		{
			name: "scenario B managed monthly without subscription id",
			license: func() *models.License {
				l := newLicense(TierManagedMonthly, models.LicenseStatusActive)
				l.CurrentPeriodEnd = timePtr(future)
				return l
			},
			want: Verdict{Allowed: false, Reason: ReasonMissingSubscriptionID, Authority: AuthorityProcessor},
		},
		{
			name: "scenario C lifetime without expiry",
			license: func() *models.License {
				return newLicense(TierLifetime, models.LicenseStatusActive)
			},
			want: Verdict{Allowed: true, Reason: ReasonDBPerpetual, Authority: AuthorityDatabase},
		},
		{
			name: "database tier expired",
			license: func() *models.License {
				l := newLicense(TierBasic, models.LicenseStatusActive)
				l.ExpiresAt = timePtr(past)
				return l
			},
			want: Verdict{Allowed: false, Reason: ReasonLicenseExpired, Authority: AuthorityDatabase},
		},
		{
			name: "database tier expiring exactly now",
			license: func() *models.License {
				l := newLicense(TierBasic, models.LicenseStatusTrialing)
				l.ExpiresAt = timePtr(fixedNow)
				return l
			},
			want: Verdict{Allowed: false, Reason: ReasonLicenseExpired, Authority: AuthorityDatabase},
		},
		{
			name: "database tier ignores processor period end",
			license: func() *models.License {
				l := newLicense(TierTrial, models.LicenseStatusActive)
				l.ExpiresAt = timePtr(past)
				l.CurrentPeriodEnd = timePtr(future)
				return l
			},
			want: Verdict{Allowed: false, Reason: ReasonLicenseExpired, Authority: AuthorityDatabase},
		},
		{
			name: "processor tier ignores expires_at",
			license: func() *models.License {
				l := newLicense(TierProMonthly, models.LicenseStatusActive)
				l.ProcessorSubscriptionID = strPtr("sub_123")
				l.CurrentPeriodEnd = timePtr(future)
				l.ExpiresAt = timePtr(past)
				return l
			},
			want: Verdict{Allowed: true, Reason: ReasonSubscriptionActive, Authority: AuthorityProcessor},
		},
		{
			name: "processor tier with empty subscription id",
			license: func() *models.License {
				l := newLicense(TierManagedAnnual, models.LicenseStatusActive)
				l.ProcessorSubscriptionID = strPtr("")
				l.CurrentPeriodEnd = timePtr(future)
				return l
			},
			want: Verdict{Allowed: false, Reason: ReasonMissingSubscriptionID, Authority: AuthorityProcessor},
		},
		{
			name: "processor tier without period end",
			license: func() *models.License {
				l := newLicense(TierManagedMonthly, models.LicenseStatusTrialing)
				l.ProcessorSubscriptionID = strPtr("sub_123")
				return l
			},
			want: Verdict{Allowed: false, Reason: ReasonMissingCurrentPeriodEnd, Authority: AuthorityProcessor},
		},
		{
			name: "processor period end at now",
			license: func() *models.License {
				l := newLicense(TierManagedMonthly, models.LicenseStatusActive)
				l.ProcessorSubscriptionID = strPtr("sub_123")
				l.CurrentPeriodEnd = timePtr(fixedNow)
				return l
			},
			want: Verdict{Allowed: false, Reason: ReasonSubscriptionExpired, Authority: AuthorityProcessor},
		},
		{
			name: "suspended dominates",
			license: func() *models.License {
				return newLicense(TierLifetime, models.LicenseStatusSuspended)
			},
			want: Verdict{Allowed: false, Reason: "status_suspended", Authority: AuthorityDatabase},
		},
		{
			name: "pending is denied",
			license: func() *models.License {
				l := newLicense(TierManagedMonthly, models.LicenseStatusPending)
				l.ProcessorSubscriptionID = strPtr("sub_123")
				l.CurrentPeriodEnd = timePtr(future)
				return l
			},
			want: Verdict{Allowed: false, Reason: "status_pending", Authority: AuthorityProcessor},
		},
		{
			name: "unknown tier",
			license: func() *models.License {
				return newLicense("platinum", models.LicenseStatusActive)
			},
			want: Verdict{Allowed: false, Reason: ReasonUnknownTier, Authority: AuthorityUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.license(), fixedNow))
		})
	}
}

func TestResolveDoesNotMutate(t *testing.T) {
	l := newLicense(TierManagedMonthly, models.LicenseStatusActive)
	l.ProcessorSubscriptionID = strPtr("sub_1")
	l.CurrentPeriodEnd = timePtr(fixedNow.Add(time.Hour))
	before := l.Clone()

	Resolve(l, fixedNow)

	assert.Equal(t, before, l)
}

func TestVerdictErr(t *testing.T) {
	assert.NoError(t, Verdict{Allowed: true, Reason: ReasonDBActive}.Err())
	assert.ErrorIs(t, Verdict{Reason: ReasonNoLicense}.Err(), ErrNoLicense)
	assert.ErrorIs(t, Verdict{Reason: ReasonUnknownTier}.Err(), ErrUnknownTier)
	assert.ErrorIs(t, Verdict{Reason: ReasonLicenseExpired}.Err(), ErrLicenseExpired)
	assert.ErrorIs(t, Verdict{Reason: ReasonMissingSubscriptionID}.Err(), ErrMissingSubscriptionID)
	assert.ErrorIs(t, Verdict{Reason: ReasonMissingCurrentPeriodEnd}.Err(), ErrMissingPeriodEnd)
	assert.ErrorIs(t, Verdict{Reason: ReasonSubscriptionExpired}.Err(), ErrSubscriptionExpired)
	assert.ErrorIs(t, Verdict{Reason: StatusReason(models.LicenseStatusRevoked)}.Err(), ErrStatusDenied)
}
