// internal/services/webhook_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/license-authority/internal/config"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/metrics"
	"github.com/javajoker/license-authority/internal/models"
	"github.com/javajoker/license-authority/internal/store"
)

// Identity recorded on audit rows written by processor events.
const (
	ProcessorActorID   = "stripe"
	ProcessorActorRole = string(licensing.RoleSystem)
)

type WebhookService struct {
	store      store.Store
	maxRetries int
	now        func() time.Time
}

// IngestResult reports what happened to one delivery.
type IngestResult struct {
	Outcome   models.WebhookOutcome `json:"outcome"`
	Reason    string                `json:"reason,omitempty"`
	LicenseID *uuid.UUID            `json:"license_id,omitempty"`
}

func NewWebhookService(st store.Store, cfg config.LicensingConfig) *WebhookService {
	retries := cfg.ConflictRetries
	if retries < 1 {
		retries = 1
	}
	return &WebhookService{
		store:      st,
		maxRetries: retries,
		now:        time.Now,
	}
}

func (s *WebhookService) WithClock(now func() time.Time) *WebhookService {
	s.now = now
	return s
}

// IngestWebhookEvent applies a verified processor event at most once. The
// event row is written in the same transaction as its effect, so a failed
// attempt leaves nothing behind and the redelivery is processed normally.
func (s *WebhookService) IngestWebhookEvent(ctx context.Context, ev licensing.ProcessorEvent) (IngestResult, error) {
	start := time.Now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues(ev.Type).Observe(time.Since(start).Seconds())
	}()

	if ev.ID == "" {
		return IngestResult{}, fmt.Errorf("%w: event id is required", licensing.ErrValidation)
	}

	seen, err := s.store.HasEvent(ctx, ev.ID)
	if err != nil {
		return IngestResult{}, err
	}
	if seen {
		return s.report(ev, IngestResult{Outcome: models.WebhookOutcomeDuplicate}), nil
	}

	var result IngestResult
	err = retryOnConflict(ctx, s.maxRetries, "webhook", func() error {
		var txErr error
		result, txErr = s.apply(ctx, ev)
		return txErr
	})
	if errors.Is(err, store.ErrDuplicateEvent) {
		// A concurrent delivery of the same event committed first.
		return s.report(ev, IngestResult{Outcome: models.WebhookOutcomeDuplicate}), nil
	}
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(ev.Type, "error").Inc()
		logrus.WithFields(logrus.Fields{
			"event_id":        ev.ID,
			"event_type":      ev.Type,
			"subscription_id": ev.SubscriptionID,
		}).WithError(err).Error("Webhook processing failed")
		return IngestResult{}, err
	}

	return s.report(ev, result), nil
}

func (s *WebhookService) apply(ctx context.Context, ev licensing.ProcessorEvent) (IngestResult, error) {
	var result IngestResult

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		cur, err := s.lookup(ctx, tx, ev)
		if err != nil {
			return err
		}

		plan := licensing.PlanWebhook(cur, ev)
		result = IngestResult{Outcome: plan.Outcome, Reason: plan.Reason}
		if cur != nil {
			id := cur.ID
			result.LicenseID = &id
		}

		if err := tx.RecordEvent(ctx, &models.WebhookEvent{
			EventID:        ev.ID,
			EventType:      ev.Type,
			SubscriptionID: ev.SubscriptionID,
			LicenseID:      result.LicenseID,
			Outcome:        plan.Outcome,
			Reason:         plan.Reason,
			ReceivedAt:     s.now().UTC(),
		}); err != nil {
			return err
		}

		if plan.Outcome != models.WebhookOutcomeApplied {
			return nil
		}

		eventID := ev.ID
		_, err = commitTransition(ctx, tx, cur, plan.Next, auditEntry{
			actorID:   ProcessorActorID,
			actorRole: ProcessorActorRole,
			action:    models.AuditActionWebhookSync,
			reason:    ev.Type,
			eventID:   &eventID,
		}, s.now())
		return err
	})

	return result, err
}

// lookup finds the license a processor event targets: by bound subscription
// first, then by the license id carried in metadata.
func (s *WebhookService) lookup(ctx context.Context, tx store.Store, ev licensing.ProcessorEvent) (*models.License, error) {
	if ev.SubscriptionID == "" {
		return nil, nil
	}

	lic, err := tx.FindLicenseBySubscription(ctx, ev.SubscriptionID)
	if err == nil {
		return lic, nil
	}
	if !errors.Is(err, licensing.ErrLicenseNotFound) {
		return nil, err
	}

	if ev.LicenseID == nil {
		return nil, nil
	}
	lic, err = tx.GetLicense(ctx, *ev.LicenseID)
	if errors.Is(err, licensing.ErrLicenseNotFound) {
		return nil, nil
	}
	return lic, err
}

func (s *WebhookService) report(ev licensing.ProcessorEvent, result IngestResult) IngestResult {
	metrics.WebhookEvents.WithLabelValues(ev.Type, string(result.Outcome)).Inc()

	entry := logrus.WithFields(logrus.Fields{
		"event_id":        ev.ID,
		"event_type":      ev.Type,
		"subscription_id": ev.SubscriptionID,
		"outcome":         result.Outcome,
		"reason":          result.Reason,
	})
	if result.LicenseID != nil {
		entry = entry.WithField("license_id", *result.LicenseID)
	}

	switch result.Outcome {
	case models.WebhookOutcomeRejected:
		entry.Warn("Webhook event rejected")
	case models.WebhookOutcomeApplied:
		entry.Info("Webhook event applied")
	default:
		entry.Debug("Webhook event not applied")
	}
	return result
}
