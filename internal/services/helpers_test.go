// internal/services/helpers_test.go
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/models"
	"github.com/javajoker/license-authority/internal/store"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func adminContext() licensing.TenantContext {
	return licensing.TenantContext{TenantID: uuid.New(), UserID: "admin-1", Role: licensing.RoleAdmin}
}

func memberContext(tenantID uuid.UUID) licensing.TenantContext {
	return licensing.TenantContext{TenantID: tenantID, UserID: "member-1", Role: licensing.RoleMember}
}

// flakyStore injects failures into transactional writes.
type flakyStore struct {
	store.Store

	mu             sync.Mutex
	conflicts      int
	auditFailures  int
	updateAttempts int
}

var errInjected = errors.New("injected store failure")

func (f *flakyStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return f.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(&flakyTx{Store: tx, parent: f})
	})
}

type flakyTx struct {
	store.Store
	parent *flakyStore
}

func (t *flakyTx) UpdateLicense(ctx context.Context, lic *models.License, expectedVersion int64) error {
	t.parent.mu.Lock()
	t.parent.updateAttempts++
	conflict := t.parent.conflicts > 0
	if conflict {
		t.parent.conflicts--
	}
	t.parent.mu.Unlock()

	if conflict {
		return licensing.ErrVersionConflict
	}
	return t.Store.UpdateLicense(ctx, lic, expectedVersion)
}

func (t *flakyTx) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	t.parent.mu.Lock()
	fail := t.parent.auditFailures > 0
	if fail {
		t.parent.auditFailures--
	}
	t.parent.mu.Unlock()

	if fail {
		return errInjected
	}
	return t.Store.AppendAudit(ctx, rec)
}

// racingStore never reports an event as seen, as when two deliveries of the
// same event pass the pre-check before either commits.
type racingStore struct {
	store.Store
}

func (r *racingStore) HasEvent(ctx context.Context, eventID string) (bool, error) {
	return false, nil
}

type fakeFetcher struct {
	state *SubscriptionState
	err   error
	calls []string
}

func (f *fakeFetcher) FetchSubscription(ctx context.Context, subscriptionID string) (*SubscriptionState, error) {
	f.calls = append(f.calls, subscriptionID)
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}
