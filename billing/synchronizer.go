// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"graphplane/platform/metering"
	"graphplane/platform/shared/logger"
	"graphplane/platform/tenancy"
)

// Synchronizer pushes closed-period ledger entries to the billing
// processor. Every exit path other than a failed push is terminal for the
// period: free tenants, missing entries and already-reported entries are
// quiet no-ops. A failed push leaves the reported flag untouched so the
// next sweep retries.
type Synchronizer struct {
	provider Provider
	repo     metering.Repository
	tenants  tenancy.Directory
	lock     *SyncLock
	log      *logger.Logger
	now      func() time.Time
}

// SynchronizerOption customizes a Synchronizer.
type SynchronizerOption func(*Synchronizer)

// WithSyncLock makes the synchronizer take a per-tenant Redis lock before
// reporting, so overlapping instances skip rather than duplicate work.
func WithSyncLock(lock *SyncLock) SynchronizerOption {
	return func(s *Synchronizer) { s.lock = lock }
}

// NewSynchronizer creates a synchronizer. A nil provider disables billing
// entirely; every ReportUsage call becomes a no-op.
func NewSynchronizer(provider Provider, repo metering.Repository, tenants tenancy.Directory, opts ...SynchronizerOption) *Synchronizer {
	s := &Synchronizer{
		provider: provider,
		repo:     repo,
		tenants:  tenants,
		log:      logger.New("billing"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReportUsage pushes one tenant's entry for the given period, at most
// once. The dedup key sent to the processor is derived from the tenant id
// and period start, so even a crash between the push and MarkReported
// cannot double-bill: the retry reuses the same key and the processor
// rejects it.
func (s *Synchronizer) ReportUsage(ctx context.Context, tenantID string, periodStart time.Time) error {
	if s.provider == nil {
		return nil
	}

	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	if !tenant.Paid() {
		return nil
	}

	entry, err := s.repo.Get(ctx, tenantID, periodStart)
	if errors.Is(err, metering.ErrEntryNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load ledger entry: %w", err)
	}
	if entry.Reported {
		return nil
	}

	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, tenantID)
		if err != nil {
			return err
		}
		if !ok {
			// Another instance is reporting this tenant right now.
			return nil
		}
		defer release()

		// Re-read under the lock; the other holder may have finished.
		entry, err = s.repo.Get(ctx, tenantID, periodStart)
		if err != nil {
			return fmt.Errorf("failed to load ledger entry: %w", err)
		}
		if entry.Reported {
			return nil
		}
	}

	items, err := s.provider.GetSubscription(ctx, tenant.ExternalSubscriptionRef)
	if err != nil {
		promUsageReports.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load subscription for tenant %s: %w", tenantID, err)
	}

	var metered *SubscriptionItem
	for i := range items {
		if items[i].Metered {
			metered = &items[i]
			break
		}
	}
	if metered == nil {
		s.log.Warn(tenantID, "", "Subscription has no metered line item, skipping usage report", map[string]interface{}{
			"subscription": tenant.ExternalSubscriptionRef,
		})
		return nil
	}

	dedupKey := fmt.Sprintf("%s:%s", tenantID, entry.PeriodStart.UTC().Format("2006-01"))
	ackID, err := s.provider.SetUsage(ctx, *metered, entry.QueriesExecuted, entry.PeriodStart, dedupKey)
	if err != nil {
		promUsageReports.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to report usage for tenant %s: %w", tenantID, err)
	}

	if err := s.repo.MarkReported(ctx, tenantID, periodStart, ackID); err != nil {
		if errors.Is(err, metering.ErrAlreadyReported) {
			return nil
		}
		return fmt.Errorf("failed to mark entry reported for tenant %s: %w", tenantID, err)
	}

	promUsageReports.WithLabelValues("success").Inc()
	s.log.Info(tenantID, "", "Reported period usage", map[string]interface{}{
		"period_start": entry.PeriodStart.Format(time.RFC3339),
		"quantity":     entry.QueriesExecuted,
		"ack_id":       ackID,
	})
	return nil
}

// SyncAll reports the previous (closed) period for every known tenant.
// Per-tenant failures are logged and do not stop the sweep.
func (s *Synchronizer) SyncAll(ctx context.Context) {
	ids, err := s.tenants.ListTenantIDs(ctx)
	if err != nil {
		s.log.Error("", "", "Failed to list tenants for billing sync", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	currentStart, _ := metering.CurrentPeriod(s.now())
	previousStart := currentStart.AddDate(0, -1, 0)

	for _, id := range ids {
		if err := s.ReportUsage(ctx, id, previousStart); err != nil {
			s.log.Error(id, "", "Billing sync failed for tenant", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	promSyncRuns.Inc()
}

// RunPeriodic sweeps on the given interval until the context is canceled.
func (s *Synchronizer) RunPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}
