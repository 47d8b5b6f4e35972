// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"context"
	"time"
)

// Repository defines the interface for usage ledger persistence.
//
// Increment must be a single atomic add at the storage layer, never a
// read-modify-write pair in application code: concurrent increments for the
// same (tenant, period) must not lose updates. Neither method retries on
// failure; a retried "create with initial deltas" could double count if the
// first attempt succeeded before a perceived failure.
type Repository interface {
	// GetOrCreate upserts a zero-counter entry for the tenant's current
	// period and returns it, or returns the existing entry unmodified.
	GetOrCreate(ctx context.Context, tenantID string) (*LedgerEntry, error)

	// Increment atomically adds the delta to the tenant's current-period
	// entry, creating it with the delta as initial counters when absent,
	// and returns the updated entry.
	Increment(ctx context.Context, tenantID string, delta UsageDelta) (*LedgerEntry, error)

	// Get returns the entry for an explicit period, or ErrEntryNotFound.
	Get(ctx context.Context, tenantID string, periodStart time.Time) (*LedgerEntry, error)

	// MarkReported flips the entry's one-way reported flag and stores the
	// external processor's acknowledgement id. Returns ErrAlreadyReported
	// if the flag was already set.
	MarkReported(ctx context.Context, tenantID string, periodStart time.Time, externalRecordID string) error

	// Ping checks storage connectivity.
	Ping(ctx context.Context) error
}
