// internal/services/reaper_service.go
package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rankbeam/license-api/internal/store"
)

// ReaperService sweeps stale rows to expired. It runs once at startup and
// then on a fixed interval; the sweep uses the same conditional update as
// lazy expiry so it commutes with request-driven transitions and never
// touches deactivated rows.
type ReaperService struct {
	store    store.LicenseStore
	interval time.Duration
}

func NewReaperService(licenseStore store.LicenseStore, interval time.Duration) *ReaperService {
	return &ReaperService{
		store:    licenseStore,
		interval: interval,
	}
}

// Start blocks until ctx is cancelled. Run it on its own goroutine.
func (r *ReaperService) Start(ctx context.Context) {
	r.sweep(ctx)

	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *ReaperService) sweep(ctx context.Context) {
	count, err := r.store.SweepExpired(ctx)
	if err != nil {
		logrus.WithError(err).Error("License expiry sweep failed")
		return
	}
	if count > 0 {
		logrus.WithField("expired", count).Info("License expiry sweep completed")
	}
}
