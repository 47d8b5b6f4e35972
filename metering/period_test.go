// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"testing"
	"time"
)

func TestCurrentPeriod_MidMonth(t *testing.T) {
	now := time.Date(2026, time.March, 15, 10, 30, 0, 0, time.UTC)
	start, end := CurrentPeriod(now)

	wantStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("expected start %v, got %v", wantStart, start)
	}
	if end.Month() != time.March || end.Day() != 31 {
		t.Errorf("expected end in March 31, got %v", end)
	}
	if !end.Before(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end %v must be before next month's start", end)
	}
}

func TestCurrentPeriod_DecemberRollsToJanuary(t *testing.T) {
	now := time.Date(2026, time.December, 31, 23, 59, 59, 0, time.UTC)
	start, end := CurrentPeriod(now)

	wantStart := time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("expected start %v, got %v", wantStart, start)
	}
	nextStart := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !end.Before(nextStart) {
		t.Errorf("end %v must be before January 1", end)
	}
	if end.Year() != 2026 || end.Month() != time.December {
		t.Errorf("expected end in December 2026, got %v", end)
	}
}

func TestCurrentPeriod_LeapFebruary(t *testing.T) {
	now := time.Date(2028, time.February, 10, 0, 0, 0, 0, time.UTC)
	_, end := CurrentPeriod(now)

	if end.Day() != 29 {
		t.Errorf("expected leap February to end on the 29th, got day %d", end.Day())
	}
}

func TestCurrentPeriod_NonUTCInputNormalized(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 07:00 on March 1 in UTC+9 is still February 29 22:00 UTC.
	now := time.Date(2028, time.March, 1, 7, 0, 0, 0, loc)
	start, _ := CurrentPeriod(now)

	wantStart := time.Date(2028, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("expected UTC-normalized start %v, got %v", wantStart, start)
	}
}

func TestCurrentPeriod_FirstInstantOfMonth(t *testing.T) {
	now := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	start, _ := CurrentPeriod(now)

	if !start.Equal(now) {
		t.Errorf("expected start %v at first instant, got %v", now, start)
	}
}
