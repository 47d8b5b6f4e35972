// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"time"
)

// SubscriptionItem is one line item on an external subscription.
type SubscriptionItem struct {
	ID         string
	PriceID    string
	CustomerID string
	Metered    bool
}

// Provider abstracts the external billing processor. Implementations must
// treat SetUsage as idempotent for a given dedupKey: re-sending the same
// key must not double-bill.
type Provider interface {
	// GetSubscription returns the line items of the subscription.
	GetSubscription(ctx context.Context, subscriptionRef string) ([]SubscriptionItem, error)

	// SetUsage reports the billable quantity for one period against a
	// metered line item and returns the processor's acknowledgement id.
	SetUsage(ctx context.Context, item SubscriptionItem, quantity int64, periodStart time.Time, dedupKey string) (string, error)
}
