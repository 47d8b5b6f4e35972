// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/billing/meterevent"
	"github.com/stripe/stripe-go/v82/subscription"
)

// StripeProvider implements Provider using the Stripe API. Usage is
// delivered as billing meter events; the event's Identifier carries the
// dedup key, so a repeated send for the same (tenant, period) is rejected
// by Stripe and treated here as already delivered.
type StripeProvider struct {
	eventName string
}

// NewStripeProvider configures the global Stripe client and returns a
// provider that emits meter events under the given event name.
func NewStripeProvider(apiKey, meterEventName string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{eventName: meterEventName}
}

// GetSubscription fetches the subscription and flattens its line items.
func (p *StripeProvider) GetSubscription(_ context.Context, subscriptionRef string) ([]SubscriptionItem, error) {
	sub, err := subscription.Get(subscriptionRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %s: %w", subscriptionRef, err)
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	var items []SubscriptionItem
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			si := SubscriptionItem{ID: item.ID, CustomerID: customerID}
			if item.Price != nil {
				si.PriceID = item.Price.ID
				if item.Price.Recurring != nil {
					si.Metered = item.Price.Recurring.UsageType == stripe.PriceRecurringUsageTypeMetered
				}
			}
			items = append(items, si)
		}
	}
	return items, nil
}

// SetUsage emits one meter event for the period. The dedup key becomes the
// event identifier; Stripe rejects a reused identifier, which we report as
// success since the usage is already on the books.
func (p *StripeProvider) SetUsage(_ context.Context, item SubscriptionItem, quantity int64, _ time.Time, dedupKey string) (string, error) {
	params := &stripe.BillingMeterEventParams{
		EventName:  stripe.String(p.eventName),
		Identifier: stripe.String(dedupKey),
		Timestamp:  stripe.Int64(time.Now().Unix()),
		Payload: map[string]string{
			"stripe_customer_id": item.CustomerID,
			"value":              strconv.FormatInt(quantity, 10),
		},
	}

	event, err := meterevent.New(params)
	if err != nil {
		if isDuplicateIdentifier(err) {
			return dedupKey, nil
		}
		return "", fmt.Errorf("failed to report usage: %w", err)
	}
	return event.Identifier, nil
}

func isDuplicateIdentifier(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := strings.ToLower(stripeErr.Msg)
		return strings.Contains(msg, "identifier") && strings.Contains(msg, "already")
	}
	return false
}
