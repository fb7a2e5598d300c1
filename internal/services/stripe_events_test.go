// internal/services/stripe_events_test.go
package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v74"

	"github.com/javajoker/license-authority/internal/licensing"
)

func stripeEvent(t *testing.T, id, eventType string, object interface{}) stripe.Event {
	t.Helper()

	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{
		ID:      id,
		Type:    eventType,
		Created: testNow.Unix(),
		Data:    &stripe.EventData{Raw: raw},
	}
}

func TestNormalizeSubscriptionEvents(t *testing.T) {
	end := testNow.Add(30 * 24 * time.Hour).Unix()
	obj := map[string]interface{}{
		"id":                 "sub_123",
		"customer":           "cus_9",
		"status":             "active",
		"current_period_end": end,
	}

	ev, err := NormalizeStripeEvent(stripeEvent(t, "evt_1", StripeSubscriptionUpdated, obj))
	require.NoError(t, err)
	assert.Equal(t, licensing.EventBillingUpdate, ev.Kind)
	assert.Equal(t, "sub_123", ev.SubscriptionID)
	assert.Equal(t, "cus_9", ev.CustomerID)
	require.NotNil(t, ev.CurrentPeriodEnd)
	assert.Equal(t, end, ev.CurrentPeriodEnd.Unix())
	assert.Equal(t, testNow, ev.OccurredAt)

	ev, err = NormalizeStripeEvent(stripeEvent(t, "evt_2", StripeSubscriptionDeleted, obj))
	require.NoError(t, err)
	assert.Equal(t, licensing.EventSubscriptionEnded, ev.Kind)
}

func TestNormalizeInvoiceUsesLatestSubscriptionLine(t *testing.T) {
	first := testNow.Add(24 * time.Hour).Unix()
	last := testNow.Add(60 * 24 * time.Hour).Unix()
	obj := map[string]interface{}{
		"id":           "in_1",
		"customer":     "cus_9",
		"subscription": "sub_123",
		"lines": map[string]interface{}{
			"data": []map[string]interface{}{
				{"type": "subscription", "period": map[string]int64{"start": 0, "end": first}},
				{"type": "subscription", "period": map[string]int64{"start": 0, "end": last}},
				{"type": "invoiceitem", "period": map[string]int64{"start": 0, "end": last + 999}},
			},
		},
	}

	ev, err := NormalizeStripeEvent(stripeEvent(t, "evt_inv", StripeInvoicePaid, obj))
	require.NoError(t, err)
	assert.Equal(t, licensing.EventPaymentSucceeded, ev.Kind)
	require.NotNil(t, ev.CurrentPeriodEnd)
	assert.Equal(t, last, ev.CurrentPeriodEnd.Unix())

	ev, err = NormalizeStripeEvent(stripeEvent(t, "evt_fail", StripeInvoicePaymentFailed, obj))
	require.NoError(t, err)
	assert.Equal(t, licensing.EventPaymentFailed, ev.Kind)
}

func TestNormalizeCheckoutMetadata(t *testing.T) {
	licenseID := "7d0c6f5e-4a57-4c8e-9a39-2d2f7c1e9b11"
	tenantID := "0b7e3c2a-6f61-4d38-8f0e-5b9c1a2d3e4f"
	obj := map[string]interface{}{
		"id":           "cs_1",
		"mode":         "subscription",
		"customer":     "cus_9",
		"subscription": "sub_123",
		"metadata": map[string]string{
			MetadataLicenseID: licenseID,
			MetadataTenantID:  tenantID,
		},
	}

	ev, err := NormalizeStripeEvent(stripeEvent(t, "evt_cs", StripeCheckoutCompleted, obj))
	require.NoError(t, err)
	assert.Equal(t, licensing.EventBillingUpdate, ev.Kind)
	require.NotNil(t, ev.LicenseID)
	assert.Equal(t, licenseID, ev.LicenseID.String())
	require.NotNil(t, ev.TenantID)
	assert.Equal(t, tenantID, ev.TenantID.String())

	delete(obj, "subscription")
	ev, err = NormalizeStripeEvent(stripeEvent(t, "evt_cs2", StripeCheckoutCompleted, obj))
	require.NoError(t, err)
	assert.Equal(t, licensing.EventUnhandled, ev.Kind)

	obj["subscription"] = "sub_123"
	obj["metadata"] = map[string]string{MetadataLicenseID: "not-a-uuid"}
	_, err = NormalizeStripeEvent(stripeEvent(t, "evt_cs3", StripeCheckoutCompleted, obj))
	assert.ErrorIs(t, err, licensing.ErrValidation)
}

func TestNormalizeRejectsMalformedEvents(t *testing.T) {
	ev, err := NormalizeStripeEvent(stripeEvent(t, "evt_x", "customer.created", map[string]string{"id": "cus_1"}))
	require.NoError(t, err)
	assert.Equal(t, licensing.EventUnhandled, ev.Kind)

	_, err = NormalizeStripeEvent(stripeEvent(t, "", StripeSubscriptionUpdated, map[string]string{}))
	assert.ErrorIs(t, err, licensing.ErrValidation)

	_, err = NormalizeStripeEvent(stripe.Event{ID: "evt_nodata", Type: StripeSubscriptionUpdated})
	assert.ErrorIs(t, err, licensing.ErrValidation)

	_, err = NormalizeStripeEvent(stripeEvent(t, "evt_bad", StripeSubscriptionUpdated, []int{1, 2}))
	assert.ErrorIs(t, err, licensing.ErrValidation)
}

func TestResyncEventKinds(t *testing.T) {
	end := testNow.Add(time.Hour)
	cases := map[string]licensing.EventKind{
		"active":             licensing.EventPaymentSucceeded,
		"trialing":           licensing.EventBillingUpdate,
		"past_due":           licensing.EventBillingUpdate,
		"canceled":           licensing.EventSubscriptionEnded,
		"incomplete_expired": licensing.EventSubscriptionEnded,
		"paused":             licensing.EventUnhandled,
	}
	for status, want := range cases {
		ev := ResyncEvent(&SubscriptionState{ID: "sub_1", Status: status, CurrentPeriodEnd: &end}, testNow)
		assert.Equal(t, want, ev.Kind, status)
		assert.Equal(t, "resync."+status, ev.Type)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
	}
}
