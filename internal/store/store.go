// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rankbeam/license-api/internal/models"
)

var ErrLicenseNotFound = errors.New("license not found")

// LicenseStore is the persistence boundary for license rows. Every mutation
// is a single atomic statement so concurrent requests converge without
// in-process locks; all writes are keyed on the unique license key, which
// makes webhook replays idempotent.
type LicenseStore interface {
	// UpsertPending inserts a new pending row, or on replay merges fields
	// without regressing the status of a more-advanced row. The fingerprint
	// is set only when the existing row has none.
	UpsertPending(ctx context.Context, email, licenseKey, fingerprint, reference string) error

	// UpsertActive inserts or merges a row into active status. A bound
	// fingerprint is never overwritten, the payment reference is only
	// replaced by a non-empty value, and the expiry is always refreshed to
	// the supplied value (renewal extension).
	UpsertActive(ctx context.Context, email, licenseKey, fingerprint string, expiresAt time.Time, reference string) error

	// GetByKey returns the row for the key or ErrLicenseNotFound. Rows whose
	// expiry has passed are flipped to expired before being returned, except
	// deactivated rows, which are sticky.
	GetByKey(ctx context.Context, licenseKey string) (*models.License, error)

	// BindFingerprint records a device fingerprint on first use. The update
	// applies only while no fingerprint is bound; the boolean reports whether
	// this call won the bind (false means another fingerprint got there
	// first, or the row is gone).
	BindFingerprint(ctx context.Context, licenseKey, fingerprint string) (bool, error)

	// ClearAndDeactivate freezes the row and clears its fingerprint so the
	// key can be rebound by a later reactivation event.
	ClearAndDeactivate(ctx context.Context, licenseKey string) error

	// SweepExpired bulk-flips every stale non-expired, non-deactivated row
	// and reports how many rows changed.
	SweepExpired(ctx context.Context) (int64, error)

	// Ping probes store connectivity for health reporting.
	Ping(ctx context.Context) error
}
