// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

// Package tenancy provides the tenant/plan directory: who a tenant is,
// which plan it is on, which graph backend its data lives in, and how it
// is billed. The directory is read-only from the metering core's
// perspective; the control plane owns the rows.
package tenancy

import "graphplane/platform/metering"

// RoutingMode selects between the shared multi-tenant graph cluster and a
// tenant's own dedicated deployment.
type RoutingMode string

const (
	RoutingShared    RoutingMode = "shared"
	RoutingDedicated RoutingMode = "dedicated"
)

// RoutingConfig describes where a tenant's graph data lives. For the shared
// mode only Mode is meaningful; the logical database name is derived from
// the tenant id. Dedicated mode carries explicit connection details.
// PasswordSecretARN, when set, points at an AWS Secrets Manager secret that
// holds the password and takes precedence over Password.
type RoutingConfig struct {
	Mode              RoutingMode `json:"mode"`
	URI               string      `json:"uri,omitempty"`
	Username          string      `json:"username,omitempty"`
	Password          string      `json:"password,omitempty"`
	PasswordSecretARN string      `json:"password_secret_arn,omitempty"`
	Database          string      `json:"database,omitempty"`
}

// Dedicated reports whether the tenant brings its own graph backend.
func (c *RoutingConfig) Dedicated() bool {
	return c != nil && c.Mode == RoutingDedicated
}

// Tenant is one isolation boundary: an organization whose graph data and
// usage are tracked independently of all others.
type Tenant struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name,omitempty"`
	PlanID                  metering.PlanID `json:"plan_id"`
	ExternalSubscriptionRef string          `json:"external_subscription_ref,omitempty"`
	Routing                 *RoutingConfig  `json:"routing,omitempty"`
}

// Paid reports whether the tenant has an active paid subscription the
// billing synchronizer can push usage to.
func (t *Tenant) Paid() bool {
	return t.ExternalSubscriptionRef != "" && t.PlanID != metering.PlanFree
}
