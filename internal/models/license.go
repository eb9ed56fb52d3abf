// internal/models/license.go
package models

import (
	"time"
)

type LicenseStatus string

const (
	LicenseStatusPending     LicenseStatus = "pending"
	LicenseStatusActive      LicenseStatus = "active"
	LicenseStatusExpired     LicenseStatus = "expired"
	LicenseStatusDeactivated LicenseStatus = "deactivated"
)

// License is the single persisted entity: one row per issued license key.
// The numeric ID is store-assigned and never leaves the service; the key is
// the external identity used by the installed application.
type License struct {
	ID                uint          `json:"-" gorm:"primaryKey;autoIncrement"`
	UserEmail         string        `json:"email" gorm:"type:varchar(255);not null;index:idx_licenses_email"`
	LicenseKey        string        `json:"license_key" gorm:"type:varchar(64);not null;uniqueIndex:idx_licenses_key"`
	Fingerprint       string        `json:"fingerprint,omitempty" gorm:"type:varchar(255)"`
	ExpiresAt         *time.Time    `json:"expires_at,omitempty"`
	PaystackReference string        `json:"paystack_reference,omitempty" gorm:"type:varchar(128)"`
	Status            LicenseStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_licenses_status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

func (License) TableName() string {
	return "licenses"
}

// IsExpiredAt reports whether the stored expiry has passed. A missing expiry
// never counts as expired; a deactivated row is sticky regardless of expiry.
func (l *License) IsExpiredAt(now time.Time) bool {
	if l.Status == LicenseStatusDeactivated {
		return false
	}
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
