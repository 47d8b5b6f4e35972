// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryNotFound is returned when no ledger entry exists for the
	// requested tenant and period.
	ErrEntryNotFound = errors.New("usage ledger entry not found")

	// ErrTenantNotFound is returned when the tenant directory has no row
	// for the requested tenant.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrAlreadyReported is returned when MarkReported finds the entry's
	// reported flag already set. The flag flips to true at most once.
	ErrAlreadyReported = errors.New("ledger entry already reported")

	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
)

// LimitExceededError is the distinguishable "plan limit exceeded" error kind.
// Callers map it to a specific HTTP status; it is never retried.
type LimitExceededError struct {
	Metric   string
	Used     int64
	Limit    int64
	Snapshot *Snapshot
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("plan limit exceeded: %s %d/%d", e.Metric, e.Used, e.Limit)
}

// IsLimitExceeded reports whether err carries a LimitExceededError and
// returns it for inspection.
func IsLimitExceeded(err error) (*LimitExceededError, bool) {
	var le *LimitExceededError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
