// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"context"
	"fmt"
)

// PlanLookup resolves a tenant's subscription plan. Implemented by the
// tenant directory.
type PlanLookup interface {
	PlanFor(ctx context.Context, tenantID string) (PlanID, error)
}

// Enforcer decides whether a tenant may run another metered operation.
//
// The check inspects usage as of the start of an operation and takes no
// lock, so it enforces a soft limit: concurrent requests can all pass and
// overshoot until the next check. See the package doc.
type Enforcer struct {
	plans PlanLookup
	repo  Repository
}

// NewEnforcer creates a limit enforcer.
func NewEnforcer(plans PlanLookup, repo Repository) *Enforcer {
	return &Enforcer{plans: plans, repo: repo}
}

// metricCheck fixes the order violations are reported in. The first metric
// at or over its ceiling wins; later violations are not aggregated.
type metricCheck struct {
	name  string
	used  func(*LedgerEntry) int64
	limit func(PlanLimits) int64
}

var metricChecks = []metricCheck{
	{"queries", func(e *LedgerEntry) int64 { return e.QueriesExecuted }, func(p PlanLimits) int64 { return p.QueriesPerMonth }},
	{"nodes", func(e *LedgerEntry) int64 { return e.NodesProcessed }, func(p PlanLimits) int64 { return p.NodesPerMonth }},
	{"embeddings", func(e *LedgerEntry) int64 { return e.EmbeddingsGenerated }, func(p PlanLimits) int64 { return p.EmbeddingsPerMonth }},
	{"compute-seconds", func(e *LedgerEntry) int64 { return e.ComputeSeconds }, func(p PlanLimits) int64 { return p.ComputeSecondsPerMonth }},
}

// Check compares the tenant's current-period counters against its plan
// ceilings and returns an allow/deny decision. Tenants on a fully unlimited
// plan are allowed without touching the ledger.
func (e *Enforcer) Check(ctx context.Context, tenantID string) (*Decision, error) {
	plan, err := e.plans.PlanFor(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan for tenant %s: %w", tenantID, err)
	}
	limits := LimitsFor(plan)

	if limits.IsUnlimited() {
		promLimitChecks.WithLabelValues("allowed").Inc()
		return &Decision{Allowed: true}, nil
	}

	entry, err := e.repo.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	for _, check := range metricChecks {
		limit := check.limit(limits)
		if limit == Unlimited {
			continue
		}
		if used := check.used(entry); used >= limit {
			promLimitChecks.WithLabelValues("denied").Inc()
			promLimitDenials.WithLabelValues(check.name).Inc()
			return &Decision{
				Allowed:  false,
				Reason:   fmt.Sprintf("%s limit reached: %d/%d for current period", check.name, used, limit),
				Metric:   check.name,
				Used:     used,
				Limit:    limit,
				Snapshot: snapshotOf(entry),
			}, nil
		}
	}

	promLimitChecks.WithLabelValues("allowed").Inc()
	return &Decision{Allowed: true, Snapshot: snapshotOf(entry)}, nil
}
