// internal/services/processor_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/subscription"

	"github.com/javajoker/license-authority/internal/config"
	"github.com/javajoker/license-authority/internal/licensing"
)

var ErrProcessorUnavailable = errors.New("payment processor is not configured")

// SubscriptionState is the processor's current view of a subscription.
type SubscriptionState struct {
	ID               string
	CustomerID       string
	Status           string
	CurrentPeriodEnd *time.Time
}

// SubscriptionFetcher reads a subscription from the payment processor.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error)
}

type StripeProcessor struct {
	client *subscription.Client
}

func NewStripeProcessor(cfg config.StripeConfig) *StripeProcessor {
	if cfg.SecretKey == "" {
		return &StripeProcessor{}
	}
	return &StripeProcessor{
		client: &subscription.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: cfg.SecretKey,
		},
	}
}

func (p *StripeProcessor) FetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	if p.client == nil {
		return nil, ErrProcessorUnavailable
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := p.client.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription %s: %w", subscriptionID, err)
	}

	state := &SubscriptionState{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: unixPtr(sub.CurrentPeriodEnd),
	}
	if sub.Customer != nil {
		state.CustomerID = sub.Customer.ID
	}
	return state, nil
}

// ResyncEvent turns a fetched subscription into the event the reconciler
// would have seen had the matching webhook arrived.
func ResyncEvent(state *SubscriptionState, now time.Time) licensing.ProcessorEvent {
	ev := licensing.ProcessorEvent{
		Type:             "resync." + state.Status,
		SubscriptionID:   state.ID,
		CustomerID:       state.CustomerID,
		CurrentPeriodEnd: state.CurrentPeriodEnd,
		OccurredAt:       now,
	}

	switch stripe.SubscriptionStatus(state.Status) {
	case stripe.SubscriptionStatusActive:
		ev.Kind = licensing.EventPaymentSucceeded
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		ev.Kind = licensing.EventSubscriptionEnded
	case stripe.SubscriptionStatusTrialing, stripe.SubscriptionStatusPastDue,
		stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		ev.Kind = licensing.EventBillingUpdate
	default:
		ev.Kind = licensing.EventUnhandled
	}
	return ev
}
