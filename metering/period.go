// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import "time"

// CurrentPeriod computes the billing period containing now: the first and
// last instant of the calendar month, both in UTC. Every caller in every
// process derives the same window from the same wall-clock time, so ledger
// rows line up across services.
func CurrentPeriod(now time.Time) (start, end time.Time) {
	now = now.UTC()
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
