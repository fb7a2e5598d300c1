// internal/services/audit_archive_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/license-authority/internal/config"
	"github.com/javajoker/license-authority/internal/licensing"
	"github.com/javajoker/license-authority/internal/models"
	"github.com/javajoker/license-authority/internal/store"
	"github.com/javajoker/license-authority/internal/utils"
)

const archivePageSize = 100

// AuditArchiveService writes a license's full audit trail to S3, or to a
// local directory when no bucket is configured.
type AuditArchiveService struct {
	store    store.Store
	s3Client s3iface.S3API
	config   config.AWSConfig
	now      func() time.Time
}

type ArchiveResult struct {
	Location string `json:"location"`
	Key      string `json:"key"`
	Records  int    `json:"records"`
	Size     int64  `json:"size"`
}

type auditArchive struct {
	LicenseID      uuid.UUID            `json:"license_id"`
	TenantID       uuid.UUID            `json:"tenant_id"`
	CatalogVersion string               `json:"tier_catalog_version"`
	ExportedAt     time.Time            `json:"exported_at"`
	ExportedBy     string               `json:"exported_by"`
	License        *models.License      `json:"license"`
	Records        []models.AuditRecord `json:"records"`
}

func NewAuditArchiveService(st store.Store, cfg config.AWSConfig) (*AuditArchiveService, error) {
	svc := &AuditArchiveService{store: st, config: cfg, now: time.Now}

	if cfg.AuditBucket == "" || cfg.AccessKeyID == "" {
		// Local archive for development
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

// WithS3Client swaps the S3 client, mainly for tests.
func (s *AuditArchiveService) WithS3Client(client s3iface.S3API) *AuditArchiveService {
	s.s3Client = client
	return s
}

// Export archives every audit record of a license. Elevated callers only.
func (s *AuditArchiveService) Export(ctx context.Context, tc licensing.TenantContext, licenseID uuid.UUID) (*ArchiveResult, error) {
	if err := tc.RequireElevated("export audit"); err != nil {
		logDenied(tc, licenseID, "export_audit", "role not elevated")
		return nil, err
	}

	lic, err := s.store.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	records, err := s.collect(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	exportedAt := s.now().UTC()
	payload, err := json.MarshalIndent(auditArchive{
		LicenseID:      lic.ID,
		TenantID:       lic.TenantID,
		CatalogVersion: licensing.TierCatalogVersion,
		ExportedAt:     exportedAt,
		ExportedBy:     tc.UserID,
		License:        lic,
		Records:        records,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit archive: %w", err)
	}

	key := s.archiveKey(lic, exportedAt)

	var result *ArchiveResult
	if s.s3Client != nil {
		result, err = s.uploadToS3(ctx, payload, key)
	} else {
		result, err = s.writeLocal(payload, key)
	}
	if err != nil {
		return nil, err
	}
	result.Records = len(records)

	logrus.WithFields(logrus.Fields{
		"license_id": licenseID,
		"records":    result.Records,
		"location":   result.Location,
		"actor_id":   tc.UserID,
	}).Info("Audit trail archived")

	return result, nil
}

func (s *AuditArchiveService) collect(ctx context.Context, licenseID uuid.UUID) ([]models.AuditRecord, error) {
	var all []models.AuditRecord
	for page := 1; ; page++ {
		batch, total, err := s.store.ListAudit(ctx, licenseID, utils.PaginationParams{
			Page:  page,
			Limit: archivePageSize,
			Sort:  "occurred_at",
			Order: "asc",
		})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < archivePageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func (s *AuditArchiveService) archiveKey(lic *models.License, at time.Time) string {
	return path.Join(
		s.config.AuditPrefix,
		lic.TenantID.String(),
		lic.ID.String(),
		at.Format("20060102T150405Z")+".json",
	)
}

func (s *AuditArchiveService) uploadToS3(ctx context.Context, payload []byte, key string) (*ArchiveResult, error) {
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.config.AuditBucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(payload),
		ContentType:          aws.String("application/json"),
		ContentLength:        aws.Int64(int64(len(payload))),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload audit archive to S3: %w", err)
	}

	return &ArchiveResult{
		Location: fmt.Sprintf("s3://%s/%s", s.config.AuditBucket, key),
		Key:      key,
		Size:     int64(len(payload)),
	}, nil
}

func (s *AuditArchiveService) writeLocal(payload []byte, key string) (*ArchiveResult, error) {
	target := filepath.Join(s.config.LocalArchiveDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(target, payload, 0o640); err != nil {
		return nil, fmt.Errorf("failed to write audit archive: %w", err)
	}

	return &ArchiveResult{
		Location: "file://" + target,
		Key:      key,
		Size:     int64(len(payload)),
	}, nil
}
