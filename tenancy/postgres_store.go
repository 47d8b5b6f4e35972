// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package tenancy

import (
	"context"
	"database/sql"
	"fmt"

	"graphplane/platform/metering"
)

// PostgresDirectory implements Directory over the control plane's tenants
// and graph_routing_configs tables.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory creates a new PostgreSQL-backed tenant directory.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// GetTenant returns the tenant with its routing config, when provisioned.
func (d *PostgresDirectory) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	query := `
		SELECT t.id, t.name, t.plan_id, t.external_subscription_ref,
			   r.mode, r.uri, r.username, r.password, r.password_secret_arn, r.database_name
		FROM tenants t
		LEFT JOIN graph_routing_configs r ON r.tenant_id = t.id
		WHERE t.id = $1
	`

	var tenant Tenant
	var name, subscriptionRef sql.NullString
	var mode, uri, username, password, secretARN, database sql.NullString

	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID, &name, &tenant.PlanID, &subscriptionRef,
		&mode, &uri, &username, &password, &secretARN, &database,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	tenant.Name = name.String
	tenant.ExternalSubscriptionRef = subscriptionRef.String

	if mode.Valid {
		tenant.Routing = &RoutingConfig{
			Mode:              RoutingMode(mode.String),
			URI:               uri.String,
			Username:          username.String,
			Password:          password.String,
			PasswordSecretARN: secretARN.String,
			Database:          database.String,
		}
	}

	return &tenant, nil
}

// ListTenantIDs returns all tenant ids.
func (d *PostgresDirectory) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PlanFor resolves just the tenant's plan id. Unknown tenants resolve to
// the most restrictive plan so enforcement fails safe.
func (d *PostgresDirectory) PlanFor(ctx context.Context, tenantID string) (metering.PlanID, error) {
	var plan sql.NullString
	err := d.db.QueryRowContext(ctx, `SELECT plan_id FROM tenants WHERE id = $1`, tenantID).Scan(&plan)
	if err == sql.ErrNoRows {
		return metering.PlanFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve plan: %w", err)
	}
	if !plan.Valid || plan.String == "" {
		return metering.PlanFree, nil
	}
	return metering.PlanID(plan.String), nil
}
