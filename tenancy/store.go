// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package tenancy

import (
	"context"
	"errors"
)

// ErrTenantNotFound is returned when no tenant row exists for the id.
var ErrTenantNotFound = errors.New("tenant not found")

// Directory resolves tenants and their plan/routing configuration.
type Directory interface {
	// GetTenant returns the tenant, including its routing config when one
	// has been provisioned, or ErrTenantNotFound.
	GetTenant(ctx context.Context, id string) (*Tenant, error)

	// ListTenantIDs returns all tenant ids, for schedulers that iterate
	// the fleet.
	ListTenantIDs(ctx context.Context) ([]string, error)
}
