// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package graphdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Job status values.
const (
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// JobRecord is one row of algorithmic job history. Job history is the
// operator-facing read path; the usage ledger is the billing source of
// truth. The two are reconciled, not transactionally coupled.
type JobRecord struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	Algorithm        string    `json:"algorithm"`
	Status           string    `json:"status"`
	RecordsProcessed int64     `json:"records_processed"`
	DurationSeconds  int64     `json:"duration_seconds"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Error            string    `json:"error,omitempty"`
}

// JobStore persists algorithmic job history.
type JobStore interface {
	SaveJob(ctx context.Context, job *JobRecord) error
	ListJobs(ctx context.Context, tenantID string, limit int) ([]JobRecord, error)
}

// PostgresJobStore implements JobStore using PostgreSQL.
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore creates a new PostgreSQL job store.
func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// SaveJob inserts a job history row.
func (s *PostgresJobStore) SaveJob(ctx context.Context, job *JobRecord) error {
	query := `
		INSERT INTO graph_job_history (
			id, tenant_id, algorithm, status, records_processed,
			duration_seconds, started_at, finished_at, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.TenantID, job.Algorithm, job.Status,
		job.RecordsProcessed, job.DurationSeconds,
		job.StartedAt, job.FinishedAt, nullString(job.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// ListJobs returns the tenant's most recent jobs.
func (s *PostgresJobStore) ListJobs(ctx context.Context, tenantID string, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tenant_id, algorithm, status, records_processed,
			   duration_seconds, started_at, finished_at, error
		FROM graph_job_history
		WHERE tenant_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		var job JobRecord
		var jobErr sql.NullString
		if err := rows.Scan(
			&job.ID, &job.TenantID, &job.Algorithm, &job.Status,
			&job.RecordsProcessed, &job.DurationSeconds,
			&job.StartedAt, &job.FinishedAt, &jobErr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		job.Error = jobErr.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
