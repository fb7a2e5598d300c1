// internal/services/license_service_test.go
package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/javajoker/license-authority/internal/config"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/models"
	"github.com/javajoker/license-authority/internal/store"
	"github.com/javajoker/license-authority/internal/testutil"
	"github.com/javajoker/license-authority/internal/utils"
)

type LicenseServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	store   *store.GormStore
	fetcher *fakeFetcher
	service *LicenseService
	ctx     context.Context
}

func (s *LicenseServiceTestSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.store = store.NewGormStore(s.db)
	s.fetcher = &fakeFetcher{}
	s.service = NewLicenseService(s.store, s.fetcher, config.LicensingConfig{ConflictRetries: 3}).WithClock(fixedClock)
	s.ctx = context.Background()
}

func (s *LicenseServiceTestSuite) seed(tier string, status models.LicenseStatus, mutate func(*models.License)) *models.License {
	return testutil.SeedLicense(s.T(), s.db, tier, status, mutate)
}

func (s *LicenseServiceTestSuite) TestCheckAccessScenarios() {
	trial := s.seed(licensing.TierTrial, models.LicenseStatusActive, func(l *models.License) {
		future := testNow.Add(7 * 24 * time.Hour)
		l.ExpiresAt = &future
	})
	managed := s.seed(licensing.TierManagedMonthly, models.LicenseStatusActive, func(l *models.License) {
		future := testNow.Add(24 * time.Hour)
		l.CurrentPeriodEnd = &future
	})
	lifetime := s.seed(licensing.TierLifetime, models.LicenseStatusActive, nil)

	verdict, err := s.service.CheckAccess(s.ctx, trial.ID)
	s.Require().NoError(err)
	s.Equal(licensing.Verdict{Allowed: true, Reason: licensing.ReasonDBActive, Authority: licensing.AuthorityDatabase}, verdict)

	verdict, err = s.service.CheckAccess(s.ctx, managed.ID)
	s.Require().NoError(err)
	s.Equal(licensing.Verdict{Allowed: false, Reason: licensing.ReasonMissingSubscriptionID, Authority: licensing.AuthorityProcessor}, verdict)

	verdict, err = s.service.CheckAccess(s.ctx, lifetime.ID)
	s.Require().NoError(err)
	s.Equal(licensing.Verdict{Allowed: true, Reason: licensing.ReasonDBPerpetual, Authority: licensing.AuthorityDatabase}, verdict)

	verdict, err = s.service.CheckAccess(s.ctx, uuid.New())
	s.Require().NoError(err)
	s.Equal(licensing.ReasonNoLicense, verdict.Reason)
	s.False(verdict.Allowed)
}

func (s *LicenseServiceTestSuite) TestCheckAccessForIsTenantScoped() {
	lic := s.seed(licensing.TierLifetime, models.LicenseStatusActive, nil)

	verdict, err := s.service.CheckAccessFor(s.ctx, memberContext(lic.TenantID), lic.ID)
	s.Require().NoError(err)
	s.True(verdict.Allowed)

	_, err = s.service.CheckAccessFor(s.ctx, memberContext(uuid.New()), lic.ID)
	s.ErrorIs(err, licensing.ErrForbidden)

	verdict, err = s.service.CheckAccessFor(s.ctx, adminContext(), lic.ID)
	s.Require().NoError(err)
	s.True(verdict.Allowed)

	_, _, err = s.service.GetLicense(s.ctx, memberContext(uuid.New()), lic.ID)
	s.ErrorIs(err, licensing.ErrLicenseNotFound)
}

func (s *LicenseServiceTestSuite) TestSuspendWritesOneAuditRecord() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusActive, nil)
	tc := adminContext()

	result, err := s.service.AdminAction(s.ctx, tc, lic.ID, models.AuditActionSuspend, licensing.ActionParams{Reason: "  chargeback  "})
	s.Require().NoError(err)
	s.Equal(models.LicenseStatusSuspended, result.License.Status)
	s.Equal(int64(2), result.License.Version)
	s.False(result.Verdict.Allowed)
	s.Equal(licensing.StatusReason(models.LicenseStatusSuspended), result.Verdict.Reason)

	s.Require().NotNil(result.Audit)
	s.Equal("chargeback", result.Audit.Reason)
	s.Equal(tc.UserID, result.Audit.ActorID)
	s.Equal("admin", result.Audit.ActorRole)
	s.Equal(models.LicenseStatusActive, result.Audit.BeforeState.Status)
	s.Equal(models.LicenseStatusSuspended, result.Audit.AfterState.Status)
	s.Equal(int64(2), result.Audit.AfterState.Version)
	s.Nil(result.Audit.EventID)

	s.Equal(int64(1), testutil.CountAudit(s.T(), s.db, lic.ID))
	s.Equal(models.LicenseStatusSuspended, testutil.ReloadLicense(s.T(), s.db, lic.ID).Status)
}

func (s *LicenseServiceTestSuite) TestScenarioDEmptyReason() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusActive, nil)

	_, err := s.service.AdminAction(s.ctx, adminContext(), lic.ID, models.AuditActionSuspend, licensing.ActionParams{Reason: ""})
	s.ErrorIs(err, licensing.ErrValidation)

	reloaded := testutil.ReloadLicense(s.T(), s.db, lic.ID)
	s.Equal(models.LicenseStatusActive, reloaded.Status)
	s.Equal(int64(1), reloaded.Version)
	s.Zero(testutil.CountAudit(s.T(), s.db, lic.ID))
}

func (s *LicenseServiceTestSuite) TestScenarioEReactivateRevoked() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusRevoked, nil)

	_, err := s.service.AdminAction(s.ctx, adminContext(), lic.ID, models.AuditActionReactivate, licensing.ActionParams{})
	s.ErrorIs(err, licensing.ErrIllegalTransition)

	reloaded := testutil.ReloadLicense(s.T(), s.db, lic.ID)
	s.Equal(models.LicenseStatusRevoked, reloaded.Status)
	s.Equal(int64(1), reloaded.Version)
	s.Zero(testutil.CountAudit(s.T(), s.db, lic.ID))
}

func (s *LicenseServiceTestSuite) TestForbiddenRunsBeforeEverythingElse() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusActive, nil)
	member := memberContext(lic.TenantID)

	_, err := s.service.AdminAction(s.ctx, member, lic.ID, models.AuditActionSuspend, licensing.ActionParams{Reason: ""})
	s.ErrorIs(err, licensing.ErrForbidden)

	_, err = s.service.AdminAction(s.ctx, member, uuid.New(), models.AuditActionRevoke, licensing.ActionParams{Reason: "x"})
	s.ErrorIs(err, licensing.ErrForbidden)

	s.Zero(testutil.CountAudit(s.T(), s.db, lic.ID))
	s.Equal(int64(1), testutil.ReloadLicense(s.T(), s.db, lic.ID).Version)
}

func (s *LicenseServiceTestSuite) TestRevokeIsPermanent() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusSuspended, nil)
	tc := adminContext()

	_, err := s.service.AdminAction(s.ctx, tc, lic.ID, models.AuditActionRevoke, licensing.ActionParams{Reason: "fraud"})
	s.Require().NoError(err)

	for _, action := range licensing.AdminActions() {
		_, err := s.service.AdminAction(s.ctx, tc, lic.ID, action, licensing.ActionParams{
			Reason:   "retry",
			Features: models.FeatureSet{"sso": true},
			Limits:   &models.Limits{},
		})
		s.ErrorIs(err, licensing.ErrIllegalTransition, string(action))
	}

	s.Equal(models.LicenseStatusRevoked, testutil.ReloadLicense(s.T(), s.db, lic.ID).Status)
	s.Equal(int64(1), testutil.CountAudit(s.T(), s.db, lic.ID))
}

func (s *LicenseServiceTestSuite) TestUpdateFeaturesAndLimits() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusTrialing, nil)
	tc := adminContext()

	result, err := s.service.AdminAction(s.ctx, tc, lic.ID, models.AuditActionUpdateFeatures,
		licensing.ActionParams{Features: models.FeatureSet{"sso": true, "reports": false}})
	s.Require().NoError(err)
	s.True(result.License.Features["sso"])

	students := 300
	result, err = s.service.AdminAction(s.ctx, tc, lic.ID, models.AuditActionUpdateLimits,
		licensing.ActionParams{Limits: &models.Limits{MaxStudents: &students}})
	s.Require().NoError(err)
	s.Equal(int64(3), result.License.Version)

	reloaded := testutil.ReloadLicense(s.T(), s.db, lic.ID)
	s.Equal(models.FeatureSet{"sso": true, "reports": false}, reloaded.Features)
	s.Require().NotNil(reloaded.Limits.MaxStudents)
	s.Equal(300, *reloaded.Limits.MaxStudents)
	s.Equal(models.LicenseStatusTrialing, reloaded.Status)
	s.Equal(int64(2), testutil.CountAudit(s.T(), s.db, lic.ID))
}

func (s *LicenseServiceTestSuite) TestVersionConflictIsRetried() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusActive, nil)
	flaky := &flakyStore{Store: s.store, conflicts: 2}
	svc := NewLicenseService(flaky, nil, config.LicensingConfig{ConflictRetries: 3}).WithClock(fixedClock)

	result, err := svc.AdminAction(s.ctx, adminContext(), lic.ID, models.AuditActionSuspend, licensing.ActionParams{Reason: "race"})
	s.Require().NoError(err)
	s.Equal(models.LicenseStatusSuspended, result.License.Status)
	s.Equal(3, flaky.updateAttempts)
	s.Equal(int64(1), testutil.CountAudit(s.T(), s.db, lic.ID))
}

func (s *LicenseServiceTestSuite) TestVersionConflictSurfacesAfterRetries() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusActive, nil)
	flaky := &flakyStore{Store: s.store, conflicts: 10}
	svc := NewLicenseService(flaky, nil, config.LicensingConfig{ConflictRetries: 3}).WithClock(fixedClock)

	_, err := svc.AdminAction(s.ctx, adminContext(), lic.ID, models.AuditActionSuspend, licensing.ActionParams{Reason: "race"})
	s.ErrorIs(err, licensing.ErrVersionConflict)
	s.Equal(3, flaky.updateAttempts)
	s.Zero(testutil.CountAudit(s.T(), s.db, lic.ID))
	s.Equal(models.LicenseStatusActive, testutil.ReloadLicense(s.T(), s.db, lic.ID).Status)
}

func (s *LicenseServiceTestSuite) TestResyncActivatesFromProcessor() {
	lic := s.seed(licensing.TierManagedMonthly, models.LicenseStatusPending,
		testutil.ProcessorLicense("sub_resync", testNow.Add(-time.Hour)))
	end := testNow.Add(30 * 24 * time.Hour)
	s.fetcher.state = &SubscriptionState{ID: "sub_resync", CustomerID: "cus_1", Status: "active", CurrentPeriodEnd: &end}

	result, err := s.service.Resync(s.ctx, adminContext(), lic.ID)
	s.Require().NoError(err)
	s.Equal([]string{"sub_resync"}, s.fetcher.calls)
	s.Equal(models.WebhookOutcomeApplied, result.Outcome)
	s.Equal(models.LicenseStatusActive, result.License.Status)
	s.True(result.Verdict.Allowed)
	s.Require().NotNil(result.Audit)
	s.Equal(models.AuditActionWebhookSync, result.Audit.Action)
	s.Equal("resync.active", result.Audit.Reason)

	result, err = s.service.Resync(s.ctx, adminContext(), lic.ID)
	s.Require().NoError(err)
	s.Equal(models.WebhookOutcomeIgnored, result.Outcome)
	s.Equal(licensing.ReasonNoChange, result.Reason)
	s.Equal(int64(1), testutil.CountAudit(s.T(), s.db, lic.ID))
}

func (s *LicenseServiceTestSuite) TestResyncRejectsDatabaseTiers() {
	lic := s.seed(licensing.TierLifetime, models.LicenseStatusActive, nil)

	_, err := s.service.Resync(s.ctx, adminContext(), lic.ID)
	s.ErrorIs(err, licensing.ErrIllegalTransition)
	s.Empty(s.fetcher.calls)

	_, err = s.service.Resync(s.ctx, memberContext(lic.TenantID), lic.ID)
	s.ErrorIs(err, licensing.ErrForbidden)
}

func (s *LicenseServiceTestSuite) TestListAudit() {
	lic := s.seed(licensing.TierBasic, models.LicenseStatusActive, nil)
	tc := adminContext()

	_, err := s.service.AdminAction(s.ctx, tc, lic.ID, models.AuditActionSuspend, licensing.ActionParams{Reason: "a"})
	s.Require().NoError(err)
	_, err = s.service.AdminAction(s.ctx, tc, lic.ID, models.AuditActionReactivate, licensing.ActionParams{})
	s.Require().NoError(err)

	records, total, err := s.service.ListAudit(s.ctx, tc, lic.ID, utils.PaginationParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(records, 2)

	_, _, err = s.service.ListAudit(s.ctx, memberContext(lic.TenantID), lic.ID, utils.PaginationParams{})
	s.ErrorIs(err, licensing.ErrForbidden)

	_, _, err = s.service.ListAudit(s.ctx, tc, uuid.New(), utils.PaginationParams{})
	s.ErrorIs(err, licensing.ErrLicenseNotFound)
}

func TestLicenseServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceTestSuite))
}
