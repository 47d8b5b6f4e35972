// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package tenancy

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"graphplane/platform/metering"
)

func newTestDirectory(t *testing.T) (*PostgresDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresDirectory(db), mock
}

func tenantColumns() []string {
	return []string{
		"id", "name", "plan_id", "external_subscription_ref",
		"mode", "uri", "username", "password", "password_secret_arn", "database_name",
	}
}

func TestPostgresDirectory_GetTenant_Shared(t *testing.T) {
	dir, mock := newTestDirectory(t)

	rows := sqlmock.NewRows(tenantColumns()).AddRow(
		"tenant-a", "Acme", "PRO", "sub_123",
		"shared", nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT t.id, t.name").WithArgs("tenant-a").WillReturnRows(rows)

	tenant, err := dir.GetTenant(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tenant.PlanID != metering.PlanPro {
		t.Errorf("expected plan PRO, got %s", tenant.PlanID)
	}
	if tenant.Routing == nil || tenant.Routing.Dedicated() {
		t.Errorf("expected shared routing, got %+v", tenant.Routing)
	}
	if !tenant.Paid() {
		t.Error("expected PRO tenant with subscription ref to be paid")
	}
}

func TestPostgresDirectory_GetTenant_Dedicated(t *testing.T) {
	dir, mock := newTestDirectory(t)

	rows := sqlmock.NewRows(tenantColumns()).AddRow(
		"tenant-b", "Globex", "ENTERPRISE", "sub_456",
		"dedicated", "neo4j+s://globex.example.com", "svc", nil,
		"arn:aws:secretsmanager:us-east-1:1:secret:globex", "production",
	)
	mock.ExpectQuery("SELECT t.id, t.name").WithArgs("tenant-b").WillReturnRows(rows)

	tenant, err := dir.GetTenant(context.Background(), "tenant-b")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !tenant.Routing.Dedicated() {
		t.Fatal("expected dedicated routing")
	}
	if tenant.Routing.PasswordSecretARN == "" {
		t.Error("expected secret ARN to be populated")
	}
	if tenant.Routing.Database != "production" {
		t.Errorf("expected database production, got %q", tenant.Routing.Database)
	}
}

func TestPostgresDirectory_GetTenant_NoRoutingRow(t *testing.T) {
	dir, mock := newTestDirectory(t)

	rows := sqlmock.NewRows(tenantColumns()).AddRow(
		"tenant-c", nil, "FREE", nil,
		nil, nil, nil, nil, nil, nil,
	)
	mock.ExpectQuery("SELECT t.id, t.name").WithArgs("tenant-c").WillReturnRows(rows)

	tenant, err := dir.GetTenant(context.Background(), "tenant-c")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if tenant.Routing != nil {
		t.Errorf("expected nil routing without a config row, got %+v", tenant.Routing)
	}
	if tenant.Routing.Dedicated() {
		t.Error("nil routing must not report dedicated")
	}
	if tenant.Paid() {
		t.Error("free tenant without subscription must not be paid")
	}
}

func TestPostgresDirectory_GetTenant_NotFound(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectQuery("SELECT t.id, t.name").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := dir.GetTenant(context.Background(), "missing")
	if !errors.Is(err, ErrTenantNotFound) {
		t.Errorf("expected ErrTenantNotFound, got %v", err)
	}
}

func TestPostgresDirectory_PlanFor_UnknownTenantFailsSafe(t *testing.T) {
	dir, mock := newTestDirectory(t)

	mock.ExpectQuery("SELECT plan_id FROM tenants").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	plan, err := dir.PlanFor(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if plan != metering.PlanFree {
		t.Errorf("expected unknown tenant to resolve to FREE, got %s", plan)
	}
}

func TestPostgresDirectory_ListTenantIDs(t *testing.T) {
	dir, mock := newTestDirectory(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow("tenant-a").AddRow("tenant-b")
	mock.ExpectQuery("SELECT id FROM tenants").WillReturnRows(rows)

	ids, err := dir.ListTenantIDs(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(ids) != 2 || ids[0] != "tenant-a" || ids[1] != "tenant-b" {
		t.Errorf("unexpected ids %v", ids)
	}
}
