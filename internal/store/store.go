// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/license-authority/internal/database"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/models"
	"github.com/javajoker/license-authority/internal/utils"
)

// ErrDuplicateEvent is returned by RecordEvent when the event id was already
// recorded.
var ErrDuplicateEvent = errors.New("webhook event already recorded")

// Store is the persistence contract of the engine. Audit rows can only be
// appended; there is no method to change or remove them.
type Store interface {
	GetLicense(ctx context.Context, id uuid.UUID) (*models.License, error)
	FindLicenseBySubscription(ctx context.Context, subscriptionID string) (*models.License, error)
	// UpdateLicense writes lic only if the stored version still equals
	// expectedVersion, and bumps the version on success.
	UpdateLicense(ctx context.Context, lic *models.License, expectedVersion int64) error
	AppendAudit(ctx context.Context, rec *models.AuditRecord) error
	RecordEvent(ctx context.Context, ev *models.WebhookEvent) error
	HasEvent(ctx context.Context, eventID string) (bool, error)
	ListAudit(ctx context.Context, licenseID uuid.UUID, params utils.PaginationParams) ([]models.AuditRecord, int64, error)
	// Transaction runs fn against a Store bound to a single DB transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetLicense(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var lic models.License
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&lic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", licensing.ErrLicenseNotFound, id)
		}
		return nil, fmt.Errorf("failed to load license: %w", err)
	}
	return checkStatus(&lic)
}

func (s *GormStore) FindLicenseBySubscription(ctx context.Context, subscriptionID string) (*models.License, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("%w: empty subscription id", licensing.ErrLicenseNotFound)
	}

	var lic models.License
	err := s.db.WithContext(ctx).Where("processor_subscription_id = ?", subscriptionID).First(&lic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: subscription %s", licensing.ErrLicenseNotFound, subscriptionID)
		}
		return nil, fmt.Errorf("failed to load license by subscription: %w", err)
	}
	return checkStatus(&lic)
}

// checkStatus refuses rows whose status the engine does not know, so a bad
// write elsewhere never resolves to a verdict.
func checkStatus(lic *models.License) (*models.License, error) {
	if !lic.Status.Valid() {
		return nil, fmt.Errorf("license %s has unknown status %q", lic.ID, lic.Status)
	}
	return lic, nil
}

func (s *GormStore) UpdateLicense(ctx context.Context, lic *models.License, expectedVersion int64) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ? AND version = ?", lic.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":                    lic.Status,
			"tier":                      lic.Tier,
			"expires_at":                lic.ExpiresAt,
			"current_period_end":        lic.CurrentPeriodEnd,
			"processor_subscription_id": lic.ProcessorSubscriptionID,
			"processor_customer_id":     lic.ProcessorCustomerID,
			"features":                  lic.Features,
			"max_users":                 lic.Limits.MaxUsers,
			"max_students":              lic.Limits.MaxStudents,
			"max_programs":              lic.Limits.MaxPrograms,
			"version":                   expectedVersion + 1,
			"updated_at":                now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update license: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.License{}).Where("id = ?", lic.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check license: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", licensing.ErrLicenseNotFound, lic.ID)
		}
		return fmt.Errorf("%w: license %s is no longer at version %d", licensing.ErrVersionConflict, lic.ID, expectedVersion)
	}

	lic.Version = expectedVersion + 1
	lic.UpdatedAt = now
	return nil
}

func (s *GormStore) AppendAudit(ctx context.Context, rec *models.AuditRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (s *GormStore) RecordEvent(ctx context.Context, ev *models.WebhookEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}

	err := s.db.WithContext(ctx).Create(ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.EventID)
		}
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	return nil
}

func (s *GormStore) HasEvent(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("event_id = ?", eventID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) ListAudit(ctx context.Context, licenseID uuid.UUID, params utils.PaginationParams) ([]models.AuditRecord, int64, error) {
	params = utils.NormalizePagination(params)

	query := s.db.WithContext(ctx).Model(&models.AuditRecord{}).Where("license_id = ?", licenseID)
	if params.Action != "" {
		query = query.Where("action = ?", params.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit records: %w", err)
	}

	var records []models.AuditRecord
	query = utils.ApplySort(query, params, []string{"occurred_at", "action"}, "occurred_at")
	if err := utils.ApplyPagination(query, params).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list audit records: %w", err)
	}

	return records, total, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
