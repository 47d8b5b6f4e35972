// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import "time"

// LedgerEntry is the per-tenant, per-period row of accumulated usage
// counters. Uniquely identified by (TenantID, PeriodStart, PeriodEnd);
// the storage layer enforces the uniqueness, not application code.
type LedgerEntry struct {
	ID                     int64     `json:"id,omitempty"`
	TenantID               string    `json:"tenant_id"`
	PeriodStart            time.Time `json:"period_start"`
	PeriodEnd              time.Time `json:"period_end"`
	QueriesExecuted        int64     `json:"queries_executed"`
	NodesProcessed         int64     `json:"nodes_processed"`
	RelationshipsProcessed int64     `json:"relationships_processed"`
	ComputeSeconds         int64     `json:"compute_seconds"`
	EmbeddingsGenerated    int64     `json:"embeddings_generated"`
	Reported               bool      `json:"reported"`
	ExternalRecordID       string    `json:"external_record_id,omitempty"`
	CreatedAt              time.Time `json:"created_at,omitempty"`
	UpdatedAt              time.Time `json:"updated_at,omitempty"`
}

// UsageDelta carries the counter increments for one operation. Zero-valued
// fields are not applied.
type UsageDelta struct {
	Queries        int64 `json:"queries,omitempty"`
	Nodes          int64 `json:"nodes,omitempty"`
	Relationships  int64 `json:"relationships,omitempty"`
	ComputeSeconds int64 `json:"compute_seconds,omitempty"`
	Embeddings     int64 `json:"embeddings,omitempty"`
}

// IsZero reports whether the delta would not change any counter.
func (d UsageDelta) IsZero() bool {
	return d.Queries == 0 && d.Nodes == 0 && d.Relationships == 0 &&
		d.ComputeSeconds == 0 && d.Embeddings == 0
}

// Snapshot is a point-in-time view of a tenant's usage, attached to limit
// decisions and returned to display layers.
type Snapshot struct {
	TenantID            string    `json:"tenant_id"`
	PeriodStart         time.Time `json:"period_start"`
	PeriodEnd           time.Time `json:"period_end"`
	QueriesExecuted     int64     `json:"queries_executed"`
	NodesProcessed      int64     `json:"nodes_processed"`
	EmbeddingsGenerated int64     `json:"embeddings_generated"`
	ComputeSeconds      int64     `json:"compute_seconds"`
}

// Decision is the result of a limit check. Metric, Used and Limit are set
// only when Allowed is false.
type Decision struct {
	Allowed  bool      `json:"allowed"`
	Reason   string    `json:"reason,omitempty"`
	Metric   string    `json:"metric,omitempty"`
	Used     int64     `json:"used,omitempty"`
	Limit    int64     `json:"limit,omitempty"`
	Snapshot *Snapshot `json:"usage,omitempty"`
}

// Err converts a denial into the typed limit error; nil for allowed
// decisions.
func (d *Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &LimitExceededError{
		Metric:   d.Metric,
		Used:     d.Used,
		Limit:    d.Limit,
		Snapshot: d.Snapshot,
	}
}

// MetricUsage pairs a counter with its plan limit for display.
type MetricUsage struct {
	Used        int64   `json:"used"`
	Limit       int64   `json:"limit"`
	PercentUsed float64 `json:"percent_used"`
}

// UsageSummary is the display-layer view of a tenant's current period.
type UsageSummary struct {
	TenantID    string                 `json:"tenant_id"`
	Plan        PlanID                 `json:"plan"`
	PeriodStart time.Time              `json:"period_start"`
	PeriodEnd   time.Time              `json:"period_end"`
	Metrics     map[string]MetricUsage `json:"metrics"`
}

func snapshotOf(entry *LedgerEntry) *Snapshot {
	return &Snapshot{
		TenantID:            entry.TenantID,
		PeriodStart:         entry.PeriodStart,
		PeriodEnd:           entry.PeriodEnd,
		QueriesExecuted:     entry.QueriesExecuted,
		NodesProcessed:      entry.NodesProcessed,
		EmbeddingsGenerated: entry.EmbeddingsGenerated,
		ComputeSeconds:      entry.ComputeSeconds,
	}
}
