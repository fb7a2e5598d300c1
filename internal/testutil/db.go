// internal/testutil/db.go
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/javajoker/license-authority/internal/database"
	"github.com/javajoker/license-authority/internal/models"
)

// NewTestDB creates an in-memory SQLite database with the engine's tables
// migrated. The connection is closed when the test finishes.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}

	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// SeedLicense inserts a license the way the provisioning flow would. The
// mutate hook adjusts fields before insert.
func SeedLicense(t *testing.T, db *gorm.DB, tier string, status models.LicenseStatus, mutate func(*models.License)) *models.License {
	t.Helper()

	lic := &models.License{
		BaseModel: models.BaseModel{ID: uuid.New()},
		TenantID:  uuid.New(),
		Status:    status,
		Tier:      tier,
		Features:  models.FeatureSet{},
		Version:   1,
	}
	if mutate != nil {
		mutate(lic)
	}

	if err := db.Create(lic).Error; err != nil {
		t.Fatalf("failed to seed license: %v", err)
	}
	return lic
}

// ProcessorLicense returns a mutate hook binding a subscription and period end.
func ProcessorLicense(subscriptionID string, periodEnd time.Time) func(*models.License) {
	return func(l *models.License) {
		l.ProcessorSubscriptionID = &subscriptionID
		end := periodEnd.UTC()
		l.CurrentPeriodEnd = &end
	}
}

func CountAudit(t *testing.T, db *gorm.DB, licenseID uuid.UUID) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&models.AuditRecord{}).Where("license_id = ?", licenseID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count audit records: %v", err)
	}
	return count
}

func ReloadLicense(t *testing.T, db *gorm.DB, id uuid.UUID) *models.License {
	t.Helper()

	var lic models.License
	if err := db.Where("id = ?", id).First(&lic).Error; err != nil {
		t.Fatalf("failed to reload license: %v", err)
	}
	return &lic
}
