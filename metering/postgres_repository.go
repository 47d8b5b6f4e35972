// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Schema is the usage ledger DDL. The unique constraint on
// (tenant_id, period_start, period_end) is what guarantees at most one
// entry per tenant and period; application code never checks for
// duplicates itself.
const Schema = `
CREATE TABLE IF NOT EXISTS usage_ledger (
	id                      BIGSERIAL PRIMARY KEY,
	tenant_id               TEXT NOT NULL,
	period_start            TIMESTAMPTZ NOT NULL,
	period_end              TIMESTAMPTZ NOT NULL,
	queries_executed        BIGINT NOT NULL DEFAULT 0,
	nodes_processed         BIGINT NOT NULL DEFAULT 0,
	relationships_processed BIGINT NOT NULL DEFAULT 0,
	compute_seconds         BIGINT NOT NULL DEFAULT 0,
	embeddings_generated    BIGINT NOT NULL DEFAULT 0,
	reported                BOOLEAN NOT NULL DEFAULT false,
	external_record_id      TEXT,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (tenant_id, period_start, period_end)
);
`

const ledgerColumns = `id, tenant_id, period_start, period_end,
	queries_executed, nodes_processed, relationships_processed,
	compute_seconds, embeddings_generated, reported, external_record_id,
	created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository creates a new PostgreSQL ledger repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// GetOrCreate upserts a zero-counter entry for the current period. The
// no-op DO UPDATE lets RETURNING yield the existing row on conflict.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, tenantID string) (*LedgerEntry, error) {
	if tenantID == "" {
		return nil, ErrInvalidInput
	}
	periodStart, periodEnd := CurrentPeriod(r.now())

	query := fmt.Sprintf(`
		INSERT INTO usage_ledger (tenant_id, period_start, period_end)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, period_start, period_end)
		DO UPDATE SET updated_at = usage_ledger.updated_at
		RETURNING %s
	`, ledgerColumns)

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, tenantID, periodStart, periodEnd))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create ledger entry: %w", err)
	}
	return entry, nil
}

// Increment atomically adds the delta to the current-period entry. On first
// touch within a period the row is created with the delta as its initial
// counters, saving a round trip; on conflict each counter is added to the
// stored value inside the same statement, so concurrent increments never
// lose updates.
func (r *PostgresRepository) Increment(ctx context.Context, tenantID string, delta UsageDelta) (*LedgerEntry, error) {
	if tenantID == "" {
		return nil, ErrInvalidInput
	}
	periodStart, periodEnd := CurrentPeriod(r.now())

	query := fmt.Sprintf(`
		INSERT INTO usage_ledger (
			tenant_id, period_start, period_end,
			queries_executed, nodes_processed, relationships_processed,
			compute_seconds, embeddings_generated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, period_start, period_end)
		DO UPDATE SET
			queries_executed        = usage_ledger.queries_executed + EXCLUDED.queries_executed,
			nodes_processed         = usage_ledger.nodes_processed + EXCLUDED.nodes_processed,
			relationships_processed = usage_ledger.relationships_processed + EXCLUDED.relationships_processed,
			compute_seconds         = usage_ledger.compute_seconds + EXCLUDED.compute_seconds,
			embeddings_generated    = usage_ledger.embeddings_generated + EXCLUDED.embeddings_generated,
			updated_at              = NOW()
		RETURNING %s
	`, ledgerColumns)

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query,
		tenantID, periodStart, periodEnd,
		delta.Queries, delta.Nodes, delta.Relationships,
		delta.ComputeSeconds, delta.Embeddings,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to increment ledger entry: %w", err)
	}
	promLedgerIncrements.Inc()
	return entry, nil
}

// Get returns the entry for an explicit period start.
func (r *PostgresRepository) Get(ctx context.Context, tenantID string, periodStart time.Time) (*LedgerEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM usage_ledger
		WHERE tenant_id = $1 AND period_start = $2
	`, ledgerColumns)

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, tenantID, periodStart))
	if err == sql.ErrNoRows {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return entry, nil
}

// MarkReported flips the one-way reported flag and records the external
// acknowledgement id. The reported = false guard makes the flip happen at
// most once even under concurrent synchronizers.
func (r *PostgresRepository) MarkReported(ctx context.Context, tenantID string, periodStart time.Time, externalRecordID string) error {
	query := `
		UPDATE usage_ledger
		SET reported = true, external_record_id = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND period_start = $2 AND reported = false
	`

	result, err := r.db.ExecContext(ctx, query, tenantID, periodStart, externalRecordID)
	if err != nil {
		return fmt.Errorf("failed to mark ledger entry reported: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := r.Get(ctx, tenantID, periodStart); err != nil {
			return err
		}
		return ErrAlreadyReported
	}
	return nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*LedgerEntry, error) {
	var entry LedgerEntry
	var externalID sql.NullString

	err := row.Scan(
		&entry.ID, &entry.TenantID, &entry.PeriodStart, &entry.PeriodEnd,
		&entry.QueriesExecuted, &entry.NodesProcessed, &entry.RelationshipsProcessed,
		&entry.ComputeSeconds, &entry.EmbeddingsGenerated,
		&entry.Reported, &externalID,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.ExternalRecordID = externalID.String
	return &entry, nil
}
