// internal/licensing/reconcile.go
package licensing

import (
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/license-authority/internal/models"
)

// EventKind is the normalized meaning of a processor event.
type EventKind string

const (
	EventBillingUpdate     EventKind = "billing_update"
	EventPaymentSucceeded  EventKind = "payment_succeeded"
	EventSubscriptionEnded EventKind = "subscription_ended"
	EventPaymentFailed     EventKind = "payment_failed"
	EventUnhandled         EventKind = "unhandled"
)

// Webhook outcome reasons recorded in the event ledger.
const (
	ReasonApplied             = "applied"
	ReasonNoChange            = "no_change"
	ReasonStalePeriodEnd      = "stale_period_end"
	ReasonTerminalLicense     = "terminal_license"
	ReasonNotProcessorTier    = "not_processor_tier"
	ReasonUnknownSubscription = "unknown_subscription"
	ReasonSubscriptionMissing = "missing_subscription_id"
	ReasonSubscriptionBound   = "subscription_mismatch"
	ReasonTenantMismatch      = "tenant_mismatch"
	ReasonPaymentFailed       = "payment_failed"
	ReasonUnhandledEvent      = "unhandled_event_type"
)

// ProcessorEvent is a verified processor event reduced to what the engine
// acts on. LicenseID and TenantID come from processor metadata when checkout
// binds a subscription to an existing license.
type ProcessorEvent struct {
	ID               string
	Type             string
	Kind             EventKind
	SubscriptionID   string
	CustomerID       string
	CurrentPeriodEnd *time.Time
	LicenseID        *uuid.UUID
	TenantID         *uuid.UUID
	OccurredAt       time.Time
}

// Reconciliation is the planned effect of one event on one license.
type Reconciliation struct {
	Outcome models.WebhookOutcome
	Reason  string
	Next    *models.License
}

func rejected(reason string) Reconciliation {
	return Reconciliation{Outcome: models.WebhookOutcomeRejected, Reason: reason}
}

func ignored(reason string) Reconciliation {
	return Reconciliation{Outcome: models.WebhookOutcomeIgnored, Reason: reason}
}

// PlanWebhook decides what ev does to cur. Next is set only for applied
// outcomes. Features and limits are never touched by processor events.
func PlanWebhook(cur *models.License, ev ProcessorEvent) Reconciliation {
	if ev.Kind == EventUnhandled {
		return ignored(ReasonUnhandledEvent)
	}
	if ev.SubscriptionID == "" {
		return rejected(ReasonSubscriptionMissing)
	}
	if cur == nil {
		return rejected(ReasonUnknownSubscription)
	}
	if !IsProcessorTier(cur.Tier) {
		return rejected(ReasonNotProcessorTier)
	}
	if cur.Status.Terminal() {
		return rejected(ReasonTerminalLicense)
	}
	if ev.TenantID != nil && *ev.TenantID != cur.TenantID {
		return rejected(ReasonTenantMismatch)
	}
	if cur.ProcessorSubscriptionID != nil && *cur.ProcessorSubscriptionID != "" &&
		*cur.ProcessorSubscriptionID != ev.SubscriptionID {
		return rejected(ReasonSubscriptionBound)
	}
	if ev.Kind == EventPaymentFailed {
		return ignored(ReasonPaymentFailed)
	}

	next := cur.Clone()
	subID := ev.SubscriptionID
	next.ProcessorSubscriptionID = &subID
	if ev.CustomerID != "" {
		customerID := ev.CustomerID
		next.ProcessorCustomerID = &customerID
	}

	switch ev.Kind {
	case EventBillingUpdate, EventPaymentSucceeded:
		if ev.CurrentPeriodEnd != nil {
			if cur.CurrentPeriodEnd != nil && ev.CurrentPeriodEnd.Before(*cur.CurrentPeriodEnd) {
				return rejected(ReasonStalePeriodEnd)
			}
			end := ev.CurrentPeriodEnd.UTC()
			next.CurrentPeriodEnd = &end
		}
		if ev.Kind == EventPaymentSucceeded &&
			(cur.Status == models.LicenseStatusPending || cur.Status == models.LicenseStatusTrialing) {
			next.Status = models.LicenseStatusActive
		}

	case EventSubscriptionEnded:
		// Only cancellation may move the period end backwards or clear it.
		if ev.CurrentPeriodEnd != nil {
			end := ev.CurrentPeriodEnd.UTC()
			next.CurrentPeriodEnd = &end
		} else {
			next.CurrentPeriodEnd = nil
		}
		if cur.Status == models.LicenseStatusActive {
			next.Status = models.LicenseStatusCancelled
		}

	default:
		return ignored(ReasonUnhandledEvent)
	}

	if SameState(cur, next) {
		return ignored(ReasonNoChange)
	}
	return Reconciliation{Outcome: models.WebhookOutcomeApplied, Reason: ReasonApplied, Next: next}
}

// SameState compares the fields a transition can change.
func SameState(a, b *models.License) bool {
	return a.Status == b.Status &&
		a.Tier == b.Tier &&
		equalTime(a.ExpiresAt, b.ExpiresAt) &&
		equalTime(a.CurrentPeriodEnd, b.CurrentPeriodEnd) &&
		equalString(a.ProcessorSubscriptionID, b.ProcessorSubscriptionID) &&
		equalString(a.ProcessorCustomerID, b.ProcessorCustomerID) &&
		equalFeatures(a.Features, b.Features) &&
		equalInt(a.Limits.MaxUsers, b.Limits.MaxUsers) &&
		equalInt(a.Limits.MaxStudents, b.Limits.MaxStudents) &&
		equalInt(a.Limits.MaxPrograms, b.Limits.MaxPrograms)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalFeatures(a, b models.FeatureSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
