// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rankbeam/license-api/internal/config"
	"github.com/rankbeam/license-api/internal/models"
	"github.com/rankbeam/license-api/internal/store"
	"github.com/rankbeam/license-api/internal/utils"
)

// Domain rejections. These are expected outcomes computed from store state,
// not system failures; handlers map each to a distinct machine-readable
// response.
var (
	ErrLicenseNotFound     = store.ErrLicenseNotFound
	ErrEmailMismatch       = errors.New("email mismatch")
	ErrPaymentPending      = errors.New("payment pending")
	ErrLicenseDeactivated  = errors.New("license deactivated")
	ErrLicenseInactive     = errors.New("subscription inactive")
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
	ErrPlanNotConfigured   = errors.New("subscription plan is not configured")
)

// LicenseExpiredError carries the recorded expiry so the rejection can
// report when the subscription lapsed.
type LicenseExpiredError struct {
	ExpiresAt time.Time
}

func (e *LicenseExpiredError) Error() string {
	return fmt.Sprintf("subscription expired at %s", e.ExpiresAt.Format(time.RFC3339))
}

type LicenseService struct {
	store   store.LicenseStore
	gateway PaymentGateway
	config  *config.Config
}

func NewLicenseService(licenseStore store.LicenseStore, gateway PaymentGateway, cfg *config.Config) *LicenseService {
	return &LicenseService{
		store:   licenseStore,
		gateway: gateway,
		config:  cfg,
	}
}

type SubscribeResult struct {
	LicenseKey       string
	Reference        string
	AuthorizationURL string
	AccessCode       string
}

// Subscribe records a pending license and opens a checkout session with the
// gateway. A gateway failure surfaces to the subscriber as retryable; the
// pending row it leaves behind is harmless because only a trusted event can
// activate it.
func (s *LicenseService) Subscribe(ctx context.Context, email, fingerprint, planCode string) (*SubscribeResult, error) {
	email = utils.NormalizeEmail(email)
	if planCode == "" {
		planCode = s.config.Paystack.PlanCode
	}
	if planCode == "" {
		return nil, ErrPlanNotConfigured
	}

	licenseKey, err := utils.GenerateLicenseKey(email)
	if err != nil {
		return nil, err
	}
	reference, err := utils.GeneratePaymentReference()
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertPending(ctx, email, licenseKey, fingerprint, reference); err != nil {
		return nil, err
	}

	resp, err := s.gateway.InitializeTransaction(ctx, &InitializeTransactionRequest{
		Email:     email,
		PlanCode:  planCode,
		Reference: reference,
		Metadata: map[string]string{
			"licenseKey":  licenseKey,
			"fingerprint": fingerprint,
		},
	})
	if err != nil {
		return nil, err
	}

	return &SubscribeResult{
		LicenseKey:       licenseKey,
		Reference:        reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
	}, nil
}

// Activate promotes the key to active with a fresh expiry computed from the
// payment timestamp. The upsert merge makes replayed or out-of-order gateway
// deliveries converge: a bound fingerprint is kept, a known reference is
// never erased, and the expiry is re-extended on every renewal.
func (s *LicenseService) Activate(ctx context.Context, email, licenseKey, fingerprint string, paidAt time.Time, reference string) (time.Time, error) {
	expiresAt := s.expiryFrom(paidAt)
	err := s.store.UpsertActive(ctx, utils.NormalizeEmail(email), utils.NormalizeLicenseKey(licenseKey),
		fingerprint, expiresAt, reference)
	if err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// Validate applies the installed-application check. The supplied fingerprint
// is bound on first use; a bound fingerprint different from the supplied one
// is always rejected.
func (s *LicenseService) Validate(ctx context.Context, email, licenseKey, fingerprint string) (*models.License, error) {
	email = utils.NormalizeEmail(email)
	licenseKey = utils.NormalizeLicenseKey(licenseKey)

	license, err := s.store.GetByKey(ctx, licenseKey)
	if err != nil {
		return nil, err
	}

	if utils.NormalizeEmail(license.UserEmail) != email {
		return nil, ErrEmailMismatch
	}

	switch license.Status {
	case models.LicenseStatusExpired:
		expiredErr := &LicenseExpiredError{}
		if license.ExpiresAt != nil {
			expiredErr.ExpiresAt = *license.ExpiresAt
		}
		return nil, expiredErr
	case models.LicenseStatusPending:
		return nil, ErrPaymentPending
	case models.LicenseStatusDeactivated:
		return nil, ErrLicenseDeactivated
	}

	if license.ExpiresAt == nil {
		return nil, ErrLicenseInactive
	}
	if license.IsExpiredAt(time.Now().UTC()) {
		// The expiry passed between the store's lazy flip and this check.
		return nil, &LicenseExpiredError{ExpiresAt: *license.ExpiresAt}
	}

	if license.Fingerprint != "" && license.Fingerprint != fingerprint {
		return nil, ErrFingerprintMismatch
	}

	if license.Fingerprint == "" {
		bound, err := s.store.BindFingerprint(ctx, licenseKey, fingerprint)
		if err != nil {
			return nil, err
		}
		if !bound {
			// Lost the first-use race: another device bound between our read
			// and the conditional update. Re-read and judge against what won.
			current, err := s.store.GetByKey(ctx, licenseKey)
			if err != nil {
				return nil, err
			}
			if current.Fingerprint != "" && current.Fingerprint != fingerprint {
				return nil, ErrFingerprintMismatch
			}
			return current, nil
		}
		license.Fingerprint = fingerprint
		logrus.WithFields(logrus.Fields{
			"license_key": licenseKey,
		}).Info("Fingerprint bound on first validation")
	}

	return license, nil
}

// Deactivate freezes the key and clears its fingerprint unconditionally so a
// later trusted activation event can rebind a fresh device.
func (s *LicenseService) Deactivate(ctx context.Context, licenseKey string) error {
	return s.store.ClearAndDeactivate(ctx, utils.NormalizeLicenseKey(licenseKey))
}

func (s *LicenseService) expiryFrom(base time.Time) time.Time {
	if base.IsZero() {
		base = time.Now().UTC()
	}
	return base.UTC().Add(time.Duration(s.config.License.ValidityDays) * 24 * time.Hour)
}
