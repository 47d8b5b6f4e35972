// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package metering

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var testNow = time.Date(2026, time.May, 12, 9, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewPostgresRepository(db)
	repo.now = func() time.Time { return testNow }
	return repo, mock
}

func ledgerRows(entry LedgerEntry) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "period_start", "period_end",
		"queries_executed", "nodes_processed", "relationships_processed",
		"compute_seconds", "embeddings_generated", "reported", "external_record_id",
		"created_at", "updated_at",
	}).AddRow(
		entry.ID, entry.TenantID, entry.PeriodStart, entry.PeriodEnd,
		entry.QueriesExecuted, entry.NodesProcessed, entry.RelationshipsProcessed,
		entry.ComputeSeconds, entry.EmbeddingsGenerated, entry.Reported,
		sql.NullString{String: entry.ExternalRecordID, Valid: entry.ExternalRecordID != ""},
		entry.CreatedAt, entry.UpdatedAt,
	)
}

func TestPostgresRepository_Increment(t *testing.T) {
	repo, mock := newTestRepository(t)
	start, end := CurrentPeriod(testNow)

	mock.ExpectQuery("INSERT INTO usage_ledger").
		WithArgs("tenant-a", start, end, int64(2), int64(5), int64(1), int64(3), int64(0)).
		WillReturnRows(ledgerRows(LedgerEntry{
			ID: 1, TenantID: "tenant-a", PeriodStart: start, PeriodEnd: end,
			QueriesExecuted: 12, NodesProcessed: 105, RelationshipsProcessed: 7,
			ComputeSeconds: 33,
		}))

	entry, err := repo.Increment(context.Background(), "tenant-a", UsageDelta{
		Queries: 2, Nodes: 5, Relationships: 1, ComputeSeconds: 3,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if entry.QueriesExecuted != 12 {
		t.Errorf("expected updated counter 12, got %d", entry.QueriesExecuted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_Increment_EmptyTenant(t *testing.T) {
	repo, _ := newTestRepository(t)

	if _, err := repo.Increment(context.Background(), "", UsageDelta{Queries: 1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPostgresRepository_GetOrCreate(t *testing.T) {
	repo, mock := newTestRepository(t)
	start, end := CurrentPeriod(testNow)

	mock.ExpectQuery("INSERT INTO usage_ledger").
		WithArgs("tenant-a", start, end).
		WillReturnRows(ledgerRows(LedgerEntry{
			ID: 7, TenantID: "tenant-a", PeriodStart: start, PeriodEnd: end,
		}))

	entry, err := repo.GetOrCreate(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if entry.QueriesExecuted != 0 || entry.Reported {
		t.Errorf("expected zero-counter unreported entry, got %+v", entry)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_Get_NotFound(t *testing.T) {
	repo, mock := newTestRepository(t)
	start, _ := CurrentPeriod(testNow)

	mock.ExpectQuery("SELECT (.+) FROM usage_ledger").
		WithArgs("tenant-a", start).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "tenant-a", start)
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestPostgresRepository_MarkReported(t *testing.T) {
	repo, mock := newTestRepository(t)
	start, _ := CurrentPeriod(testNow)

	mock.ExpectExec("UPDATE usage_ledger").
		WithArgs("tenant-a", start, "mtr-123").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkReported(context.Background(), "tenant-a", start, "mtr-123"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresRepository_MarkReported_AlreadyReported(t *testing.T) {
	repo, mock := newTestRepository(t)
	start, end := CurrentPeriod(testNow)

	// Zero rows updated, entry exists: the flag was already set.
	mock.ExpectExec("UPDATE usage_ledger").
		WithArgs("tenant-a", start, "mtr-456").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM usage_ledger").
		WithArgs("tenant-a", start).
		WillReturnRows(ledgerRows(LedgerEntry{
			ID: 1, TenantID: "tenant-a", PeriodStart: start, PeriodEnd: end,
			Reported: true, ExternalRecordID: "mtr-123",
		}))

	err := repo.MarkReported(context.Background(), "tenant-a", start, "mtr-456")
	if !errors.Is(err, ErrAlreadyReported) {
		t.Errorf("expected ErrAlreadyReported, got %v", err)
	}
}

func TestPostgresRepository_MarkReported_NoEntry(t *testing.T) {
	repo, mock := newTestRepository(t)
	start, _ := CurrentPeriod(testNow)

	mock.ExpectExec("UPDATE usage_ledger").
		WithArgs("tenant-a", start, "mtr-789").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM usage_ledger").
		WithArgs("tenant-a", start).
		WillReturnError(sql.ErrNoRows)

	err := repo.MarkReported(context.Background(), "tenant-a", start, "mtr-789")
	if !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}
