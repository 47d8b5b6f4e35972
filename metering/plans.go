// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

// PlanID identifies a subscription tier.
type PlanID string

const (
	PlanFree       PlanID = "FREE"
	PlanStarter    PlanID = "STARTER"
	PlanPro        PlanID = "PRO"
	PlanEnterprise PlanID = "ENTERPRISE"
)

// Unlimited marks a metric with no ceiling.
const Unlimited int64 = -1

// PlanLimits holds the monthly ceilings for one plan. Unlimited (-1) means
// the metric is never enforced for that plan.
type PlanLimits struct {
	QueriesPerMonth        int64 `json:"queries_per_month"`
	NodesPerMonth          int64 `json:"nodes_per_month"`
	EmbeddingsPerMonth     int64 `json:"embeddings_per_month"`
	ComputeSecondsPerMonth int64 `json:"compute_seconds_per_month"`
}

// IsUnlimited reports whether no metric has a ceiling, which lets the
// enforcer skip the ledger read entirely.
func (p PlanLimits) IsUnlimited() bool {
	return p.QueriesPerMonth == Unlimited &&
		p.NodesPerMonth == Unlimited &&
		p.EmbeddingsPerMonth == Unlimited &&
		p.ComputeSecondsPerMonth == Unlimited
}

// planCatalog is the static source of truth for plan ceilings.
var planCatalog = map[PlanID]PlanLimits{
	PlanFree: {
		QueriesPerMonth:        100,
		NodesPerMonth:          1000,
		EmbeddingsPerMonth:     50,
		ComputeSecondsPerMonth: 60,
	},
	PlanStarter: {
		QueriesPerMonth:        5000,
		NodesPerMonth:          100000,
		EmbeddingsPerMonth:     2000,
		ComputeSecondsPerMonth: 1800,
	},
	PlanPro: {
		QueriesPerMonth:        50000,
		NodesPerMonth:          2000000,
		EmbeddingsPerMonth:     25000,
		ComputeSecondsPerMonth: 14400,
	},
	PlanEnterprise: {
		QueriesPerMonth:        Unlimited,
		NodesPerMonth:          Unlimited,
		EmbeddingsPerMonth:     Unlimited,
		ComputeSecondsPerMonth: Unlimited,
	},
}

// LimitsFor returns the ceilings for a plan. Unknown or empty plan IDs fall
// back to the most restrictive plan so a misconfigured tenant fails safe.
func LimitsFor(plan PlanID) PlanLimits {
	if limits, ok := planCatalog[plan]; ok {
		return limits
	}
	return planCatalog[PlanFree]
}
