// internal/services/stripe_events.go
package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v74"

	"github.com/javajoker/license-authority/internal/licensing"
)

// Processor event types the engine acts on.
const (
	StripeSubscriptionCreated   = "customer.subscription.created"
	StripeSubscriptionUpdated   = "customer.subscription.updated"
	StripeSubscriptionDeleted   = "customer.subscription.deleted"
	StripeInvoicePaid           = "invoice.paid"
	StripeInvoicePaymentSuccess = "invoice.payment_succeeded"
	StripeInvoicePaymentFailed  = "invoice.payment_failed"
	StripeCheckoutCompleted     = "checkout.session.completed"
)

// Metadata keys set on checkout sessions and subscriptions by the billing
// frontend to bind a subscription to an already provisioned license.
const (
	MetadataLicenseID = "license_id"
	MetadataTenantID  = "tenant_id"
)

type stripeSubscription struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Lines        struct {
		Data []struct {
			Type   string `json:"type"`
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
	Metadata map[string]string `json:"metadata"`
}

type stripeCheckoutSession struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// NormalizeStripeEvent reduces a verified Stripe event to a ProcessorEvent.
// Unhandled event types come back with EventUnhandled and no error.
func NormalizeStripeEvent(event stripe.Event) (licensing.ProcessorEvent, error) {
	ev := licensing.ProcessorEvent{
		ID:         event.ID,
		Type:       event.Type,
		Kind:       licensing.EventUnhandled,
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}
	if strings.TrimSpace(ev.ID) == "" {
		return ev, fmt.Errorf("%w: event id is missing", licensing.ErrValidation)
	}
	if event.Data == nil {
		return ev, fmt.Errorf("%w: event %s has no data", licensing.ErrValidation, ev.ID)
	}

	switch ev.Type {
	case StripeSubscriptionCreated, StripeSubscriptionUpdated, StripeSubscriptionDeleted:
		var sub stripeSubscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return ev, fmt.Errorf("%w: decode subscription: %v", licensing.ErrValidation, err)
		}
		ev.Kind = licensing.EventBillingUpdate
		if ev.Type == StripeSubscriptionDeleted {
			ev.Kind = licensing.EventSubscriptionEnded
		}
		ev.SubscriptionID = sub.ID
		ev.CustomerID = sub.Customer
		ev.CurrentPeriodEnd = unixPtr(sub.CurrentPeriodEnd)
		if err := applyMetadata(&ev, sub.Metadata); err != nil {
			return ev, err
		}

	case StripeInvoicePaid, StripeInvoicePaymentSuccess, StripeInvoicePaymentFailed:
		var inv stripeInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return ev, fmt.Errorf("%w: decode invoice: %v", licensing.ErrValidation, err)
		}
		ev.Kind = licensing.EventPaymentSucceeded
		if ev.Type == StripeInvoicePaymentFailed {
			ev.Kind = licensing.EventPaymentFailed
		}
		ev.SubscriptionID = inv.Subscription
		ev.CustomerID = inv.Customer

		var end int64
		for _, line := range inv.Lines.Data {
			if line.Type != "" && line.Type != "subscription" {
				continue
			}
			if line.Period.End > end {
				end = line.Period.End
			}
		}
		ev.CurrentPeriodEnd = unixPtr(end)
		if err := applyMetadata(&ev, inv.Metadata); err != nil {
			return ev, err
		}

	case StripeCheckoutCompleted:
		var session stripeCheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return ev, fmt.Errorf("%w: decode checkout session: %v", licensing.ErrValidation, err)
		}
		if session.Subscription == "" {
			// One-off payments never touch subscription licenses.
			return ev, nil
		}
		ev.Kind = licensing.EventBillingUpdate
		ev.SubscriptionID = session.Subscription
		ev.CustomerID = session.Customer
		if err := applyMetadata(&ev, session.Metadata); err != nil {
			return ev, err
		}
	}

	return ev, nil
}

func applyMetadata(ev *licensing.ProcessorEvent, metadata map[string]string) error {
	if raw := strings.TrimSpace(metadata[MetadataLicenseID]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: metadata license_id is not a uuid", licensing.ErrValidation)
		}
		ev.LicenseID = &id
	}
	if raw := strings.TrimSpace(metadata[MetadataTenantID]); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: metadata tenant_id is not a uuid", licensing.ErrValidation)
		}
		ev.TenantID = &id
	}
	return nil
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
