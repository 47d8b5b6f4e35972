// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import "context"

// Service exposes read paths over the ledger for display layers.
type Service struct {
	plans PlanLookup
	repo  Repository
}

// NewService creates a metering read service.
func NewService(plans PlanLookup, repo Repository) *Service {
	return &Service{plans: plans, repo: repo}
}

// GetUsageSummary returns the tenant's plan, current period, and per-metric
// used/limit/percent view. It creates the period's ledger entry if this is
// the tenant's first touch of the period.
func (s *Service) GetUsageSummary(ctx context.Context, tenantID string) (*UsageSummary, error) {
	plan, err := s.plans.PlanFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	limits := LimitsFor(plan)

	entry, err := s.repo.GetOrCreate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return &UsageSummary{
		TenantID:    tenantID,
		Plan:        plan,
		PeriodStart: entry.PeriodStart,
		PeriodEnd:   entry.PeriodEnd,
		Metrics: map[string]MetricUsage{
			"queries":         metricUsage(entry.QueriesExecuted, limits.QueriesPerMonth),
			"nodes":           metricUsage(entry.NodesProcessed, limits.NodesPerMonth),
			"embeddings":      metricUsage(entry.EmbeddingsGenerated, limits.EmbeddingsPerMonth),
			"compute_seconds": metricUsage(entry.ComputeSeconds, limits.ComputeSecondsPerMonth),
		},
	}, nil
}

func metricUsage(used, limit int64) MetricUsage {
	usage := MetricUsage{Used: used, Limit: limit}
	if limit > 0 {
		usage.PercentUsed = float64(used) / float64(limit) * 100
	}
	return usage
}
