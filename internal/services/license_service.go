// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/license-authority/internal/config"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/metrics"
	"github.com/javajoker/license-authority/internal/models"
	"github.com/javajoker/license-authority/internal/store"
	"github.com/javajoker/license-authority/internal/utils"
)

const resyncAction = "resync"

type LicenseService struct {
	store      store.Store
	processor  SubscriptionFetcher
	maxRetries int
	now        func() time.Time
}

// ActionResult is returned by every accepted admin mutation.
type ActionResult struct {
	License *models.License     `json:"license"`
	Verdict licensing.Verdict   `json:"verdict"`
	Audit   *models.AuditRecord `json:"audit,omitempty"`
	// Set for resyncs, which may legitimately change nothing.
	Outcome models.WebhookOutcome `json:"outcome,omitempty"`
	Reason  string                `json:"reason,omitempty"`
}

func NewLicenseService(st store.Store, processor SubscriptionFetcher, cfg config.LicensingConfig) *LicenseService {
	retries := cfg.ConflictRetries
	if retries < 1 {
		retries = 1
	}
	return &LicenseService{
		store:      st,
		processor:  processor,
		maxRetries: retries,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for verdicts and audit timestamps.
func (s *LicenseService) WithClock(now func() time.Time) *LicenseService {
	s.now = now
	return s
}

// CheckAccess resolves the license at the current instant. A missing license
// is a denial, not an error; only store failures are returned as errors.
func (s *LicenseService) CheckAccess(ctx context.Context, licenseID uuid.UUID) (licensing.Verdict, error) {
	lic, err := s.store.GetLicense(ctx, licenseID)
	if err != nil && !errors.Is(err, licensing.ErrLicenseNotFound) {
		return licensing.Verdict{}, err
	}

	verdict := licensing.Resolve(lic, s.now())
	recordVerdict(verdict)
	return verdict, nil
}

// CheckAccessFor is CheckAccess scoped to the caller's tenant. Elevated
// callers may check any license.
func (s *LicenseService) CheckAccessFor(ctx context.Context, tc licensing.TenantContext, licenseID uuid.UUID) (licensing.Verdict, error) {
	lic, err := s.store.GetLicense(ctx, licenseID)
	if err != nil {
		if errors.Is(err, licensing.ErrLicenseNotFound) {
			verdict := licensing.Resolve(nil, s.now())
			recordVerdict(verdict)
			return verdict, nil
		}
		return licensing.Verdict{}, err
	}

	if !tc.CanView(lic.TenantID) {
		logDenied(tc, licenseID, "check_access", "tenant mismatch")
		return licensing.Verdict{}, fmt.Errorf("%w: license belongs to another tenant", licensing.ErrForbidden)
	}

	verdict := licensing.Resolve(lic, s.now())
	recordVerdict(verdict)
	return verdict, nil
}

// GetLicense returns the license with its current verdict.
func (s *LicenseService) GetLicense(ctx context.Context, tc licensing.TenantContext, licenseID uuid.UUID) (*models.License, licensing.Verdict, error) {
	lic, err := s.store.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, licensing.Verdict{}, err
	}

	if !tc.CanView(lic.TenantID) {
		logDenied(tc, licenseID, "get_license", "tenant mismatch")
		// Same answer as a missing license so ids cannot be probed across tenants.
		return nil, licensing.Verdict{}, fmt.Errorf("%w: %s", licensing.ErrLicenseNotFound, licenseID)
	}

	return lic, licensing.Resolve(lic, s.now()), nil
}

// AdminAction runs an elevated lifecycle action. The role check runs before
// anything is read; rejected attempts are logged and never audited.
func (s *LicenseService) AdminAction(ctx context.Context, tc licensing.TenantContext, licenseID uuid.UUID, action models.AuditAction, params licensing.ActionParams) (*ActionResult, error) {
	if err := tc.RequireElevated(string(action)); err != nil {
		logDenied(tc, licenseID, string(action), "role not elevated")
		metrics.AdminActions.WithLabelValues(string(action), "forbidden").Inc()
		return nil, err
	}

	var result *ActionResult
	err := s.withRetry(ctx, "admin", func() error {
		var txErr error
		result, txErr = s.applyAdminAction(ctx, tc, licenseID, action, params)
		return txErr
	})
	if err != nil {
		metrics.AdminActions.WithLabelValues(string(action), resultLabel(err)).Inc()
		logrus.WithFields(logrus.Fields{
			"license_id": licenseID,
			"action":     action,
			"actor_id":   tc.UserID,
			"actor_role": tc.Role,
		}).WithError(err).Warn("Admin action rejected")
		return nil, err
	}

	metrics.AdminActions.WithLabelValues(string(action), "applied").Inc()
	logrus.WithFields(logrus.Fields{
		"license_id": licenseID,
		"action":     action,
		"actor_id":   tc.UserID,
		"from":       result.Audit.BeforeState.Status,
		"to":         result.License.Status,
		"version":    result.License.Version,
	}).Info("Admin action applied")

	return result, nil
}

func (s *LicenseService) applyAdminAction(ctx context.Context, tc licensing.TenantContext, licenseID uuid.UUID, action models.AuditAction, params licensing.ActionParams) (*ActionResult, error) {
	var result *ActionResult

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		cur, err := tx.GetLicense(ctx, licenseID)
		if err != nil {
			return err
		}

		next, err := licensing.PlanAdminAction(cur, action, params)
		if err != nil {
			return err
		}

		rec, err := s.commit(ctx, tx, cur, next, auditEntry{
			actorID:   tc.UserID,
			actorRole: string(tc.Role),
			action:    action,
			reason:    strings.TrimSpace(params.Reason),
		})
		if err != nil {
			return err
		}

		result = &ActionResult{
			License: next,
			Verdict: licensing.Resolve(next, s.now()),
			Audit:   rec,
		}
		return nil
	})

	return result, err
}

// Resync pulls the subscription from the processor and applies it the way
// a webhook would, with the admin recorded as the actor.
func (s *LicenseService) Resync(ctx context.Context, tc licensing.TenantContext, licenseID uuid.UUID) (*ActionResult, error) {
	if err := tc.RequireElevated(resyncAction); err != nil {
		logDenied(tc, licenseID, resyncAction, "role not elevated")
		metrics.AdminActions.WithLabelValues(resyncAction, "forbidden").Inc()
		return nil, err
	}

	lic, err := s.store.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if !licensing.IsProcessorTier(lic.Tier) {
		return nil, fmt.Errorf("%w: tier %q is not billed by the processor", licensing.ErrIllegalTransition, lic.Tier)
	}
	if lic.ProcessorSubscriptionID == nil || *lic.ProcessorSubscriptionID == "" {
		return nil, fmt.Errorf("%w: license has no subscription to resync", licensing.ErrValidation)
	}
	if s.processor == nil {
		return nil, ErrProcessorUnavailable
	}

	state, err := s.processor.FetchSubscription(ctx, *lic.ProcessorSubscriptionID)
	if err != nil {
		return nil, err
	}
	ev := ResyncEvent(state, s.now())

	var result *ActionResult
	err = s.withRetry(ctx, "admin", func() error {
		return s.store.Transaction(ctx, func(tx store.Store) error {
			cur, err := tx.GetLicense(ctx, licenseID)
			if err != nil {
				return err
			}

			plan := licensing.PlanWebhook(cur, ev)
			result = &ActionResult{License: cur, Outcome: plan.Outcome, Reason: plan.Reason}
			if plan.Outcome != models.WebhookOutcomeApplied {
				result.Verdict = licensing.Resolve(cur, s.now())
				return nil
			}

			rec, err := s.commit(ctx, tx, cur, plan.Next, auditEntry{
				actorID:   tc.UserID,
				actorRole: string(tc.Role),
				action:    models.AuditActionWebhookSync,
				reason:    ev.Type,
			})
			if err != nil {
				return err
			}
			result.License = plan.Next
			result.Audit = rec
			result.Verdict = licensing.Resolve(plan.Next, s.now())
			return nil
		})
	})
	if err != nil {
		metrics.AdminActions.WithLabelValues(resyncAction, resultLabel(err)).Inc()
		return nil, err
	}

	metrics.AdminActions.WithLabelValues(resyncAction, string(result.Outcome)).Inc()
	logrus.WithFields(logrus.Fields{
		"license_id":      licenseID,
		"subscription_id": state.ID,
		"processor_state": state.Status,
		"outcome":         result.Outcome,
		"reason":          result.Reason,
	}).Info("License resynced from processor")

	return result, nil
}

// ListAudit returns the audit trail of a license. Elevated callers only.
func (s *LicenseService) ListAudit(ctx context.Context, tc licensing.TenantContext, licenseID uuid.UUID, params utils.PaginationParams) ([]models.AuditRecord, int64, error) {
	if err := tc.RequireElevated("read audit"); err != nil {
		logDenied(tc, licenseID, "list_audit", "role not elevated")
		return nil, 0, err
	}

	if _, err := s.store.GetLicense(ctx, licenseID); err != nil {
		return nil, 0, err
	}

	return s.store.ListAudit(ctx, licenseID, params)
}

type auditEntry struct {
	actorID   string
	actorRole string
	action    models.AuditAction
	reason    string
	eventID   *string
}

// commit writes next conditionally on cur's version and appends one audit
// record. Both writes share the caller's transaction.
func (s *LicenseService) commit(ctx context.Context, tx store.Store, cur, next *models.License, entry auditEntry) (*models.AuditRecord, error) {
	return commitTransition(ctx, tx, cur, next, entry, s.now())
}

func commitTransition(ctx context.Context, tx store.Store, cur, next *models.License, entry auditEntry, now time.Time) (*models.AuditRecord, error) {
	before := cur.Snapshot()
	if err := tx.UpdateLicense(ctx, next, cur.Version); err != nil {
		return nil, err
	}
	after := next.Snapshot()

	rec := &models.AuditRecord{
		LicenseID:   cur.ID,
		ActorID:     entry.actorID,
		ActorRole:   entry.actorRole,
		Action:      entry.action,
		Reason:      entry.reason,
		BeforeState: &before,
		AfterState:  &after,
		EventID:     entry.eventID,
		OccurredAt:  now.UTC(),
	}
	if err := tx.AppendAudit(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// withRetry reruns fn on version conflicts, up to the configured limit.
func (s *LicenseService) withRetry(ctx context.Context, source string, fn func() error) error {
	return retryOnConflict(ctx, s.maxRetries, source, fn)
}

func retryOnConflict(ctx context.Context, attempts int, source string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); !errors.Is(err, licensing.ErrVersionConflict) {
			return err
		}
		metrics.VersionConflicts.WithLabelValues(source).Inc()
		logrus.WithFields(logrus.Fields{
			"source":  source,
			"attempt": attempt,
		}).Debug("Version conflict, retrying with a fresh read")

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

func recordVerdict(v licensing.Verdict) {
	metrics.AccessVerdicts.WithLabelValues(strconv.FormatBool(v.Allowed), string(v.Reason)).Inc()
}

func logDenied(tc licensing.TenantContext, licenseID uuid.UUID, action, why string) {
	logrus.WithFields(logrus.Fields{
		"tenant_id":  tc.TenantID,
		"actor_id":   tc.UserID,
		"actor_role": tc.Role,
		"license_id": licenseID,
		"action":     action,
	}).Warn("Access denied: " + why)
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, licensing.ErrValidation):
		return "validation_error"
	case errors.Is(err, licensing.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, licensing.ErrForbidden):
		return "forbidden"
	case errors.Is(err, licensing.ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, licensing.ErrLicenseNotFound):
		return "not_found"
	}
	return "error"
}
