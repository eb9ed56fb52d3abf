// internal/store/gorm_store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rankbeam/license-api/internal/models"
)

// GormStore implements LicenseStore on a GORM connection. The merge SQL uses
// only ON CONFLICT ... DO UPDATE with excluded references and CASE
// expressions, which behave identically on SQLite and Postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) UpsertPending(ctx context.Context, email, licenseKey, fingerprint, reference string) error {
	now := time.Now().UTC()
	license := models.License{
		UserEmail:         email,
		LicenseKey:        licenseKey,
		Fingerprint:       fingerprint,
		PaystackReference: reference,
		Status:            models.LicenseStatusPending,
	}

	// Status is deliberately absent from the update set: a replayed
	// subscription attempt must not demote an already-activated row.
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "license_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"user_email": gorm.Expr("excluded.user_email"),
			"fingerprint": gorm.Expr(
				"CASE WHEN licenses.fingerprint IS NULL OR licenses.fingerprint = '' THEN excluded.fingerprint ELSE licenses.fingerprint END"),
			"paystack_reference": gorm.Expr(
				"CASE WHEN excluded.paystack_reference <> '' THEN excluded.paystack_reference ELSE licenses.paystack_reference END"),
			"updated_at": now,
		}),
	}).Create(&license).Error
	if err != nil {
		return fmt.Errorf("upsert pending license: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertActive(ctx context.Context, email, licenseKey, fingerprint string, expiresAt time.Time, reference string) error {
	now := time.Now().UTC()
	expiry := expiresAt.UTC()
	license := models.License{
		UserEmail:         email,
		LicenseKey:        licenseKey,
		Fingerprint:       fingerprint,
		ExpiresAt:         &expiry,
		PaystackReference: reference,
		Status:            models.LicenseStatusActive,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "license_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"user_email": gorm.Expr("excluded.user_email"),
			"fingerprint": gorm.Expr(
				"CASE WHEN licenses.fingerprint IS NULL OR licenses.fingerprint = '' THEN excluded.fingerprint " +
					"WHEN excluded.fingerprint IS NULL OR excluded.fingerprint = '' THEN licenses.fingerprint " +
					"ELSE licenses.fingerprint END"),
			"expires_at": gorm.Expr("excluded.expires_at"),
			"paystack_reference": gorm.Expr(
				"CASE WHEN excluded.paystack_reference <> '' THEN excluded.paystack_reference ELSE licenses.paystack_reference END"),
			"status":     string(models.LicenseStatusActive),
			"updated_at": now,
		}),
	}).Create(&license).Error
	if err != nil {
		return fmt.Errorf("upsert active license: %w", err)
	}
	return nil
}

func (s *GormStore) GetByKey(ctx context.Context, licenseKey string) (*models.License, error) {
	now := time.Now().UTC()

	// Lazy expiry as a single conditional statement so it commutes with the
	// periodic sweep and with concurrent reads.
	err := s.db.WithContext(ctx).Model(&models.License{}).
		Where("license_key = ? AND status NOT IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			licenseKey,
			[]string{string(models.LicenseStatusExpired), string(models.LicenseStatusDeactivated)},
			now).
		Updates(map[string]interface{}{
			"status":     string(models.LicenseStatusExpired),
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("expire license on read: %w", err)
	}

	var license models.License
	err = s.db.WithContext(ctx).Where("license_key = ?", licenseKey).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get license by key: %w", err)
	}
	return &license, nil
}

func (s *GormStore) BindFingerprint(ctx context.Context, licenseKey, fingerprint string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.License{}).
		Where("license_key = ? AND (fingerprint IS NULL OR fingerprint = '')", licenseKey).
		Updates(map[string]interface{}{
			"fingerprint": fingerprint,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("bind fingerprint: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) ClearAndDeactivate(ctx context.Context, licenseKey string) error {
	err := s.db.WithContext(ctx).Model(&models.License{}).
		Where("license_key = ?", licenseKey).
		Updates(map[string]interface{}{
			"fingerprint": "",
			"status":      string(models.LicenseStatusDeactivated),
			"updated_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("deactivate license: %w", err)
	}
	return nil
}

func (s *GormStore) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.License{}).
		Where("status NOT IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			[]string{string(models.LicenseStatusExpired), string(models.LicenseStatusDeactivated)},
			now).
		Updates(map[string]interface{}{
			"status":     string(models.LicenseStatusExpired),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("sweep expired licenses: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
