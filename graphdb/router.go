// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package graphdb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"graphplane/platform/tenancy"
)

// DialFunc opens a connection pool against a graph deployment.
type DialFunc func(uri, username, password string) (Driver, error)

// Router resolves, per tenant, which physical graph deployment and logical
// database name to use.
//
// The shared pool is injected by the composition root, which owns its
// lifecycle; the router never constructs it and never closes it. Dedicated
// drivers are dialed lazily on first resolution, cached per tenant, and
// closed by the router's Close. Dialing does not validate credentials;
// a bad dedicated config fails at the tenant's first query.
type Router struct {
	shared  Driver
	dial    DialFunc
	secrets SecretResolver

	mu        sync.Mutex
	dedicated map[string]Driver
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithDialFunc overrides how dedicated deployments are dialed.
func WithDialFunc(dial DialFunc) RouterOption {
	return func(r *Router) { r.dial = dial }
}

// WithSecretResolver enables Secrets Manager lookups for dedicated
// credentials.
func WithSecretResolver(resolver SecretResolver) RouterOption {
	return func(r *Router) { r.secrets = resolver }
}

// NewRouter creates a router over the injected shared cluster pool.
func NewRouter(shared Driver, opts ...RouterOption) *Router {
	r := &Router{
		shared:    shared,
		dial:      NewNeo4jDriver,
		dedicated: make(map[string]Driver),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveDriver returns the connection pool for the tenant: the shared
// pool unless the tenant has a dedicated routing config.
func (r *Router) ResolveDriver(ctx context.Context, tenant *tenancy.Tenant) (Driver, error) {
	if !tenant.Routing.Dedicated() {
		return r.shared, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if driver, ok := r.dedicated[tenant.ID]; ok {
		return driver, nil
	}

	cfg := tenant.Routing
	password := cfg.Password
	if cfg.PasswordSecretARN != "" {
		if r.secrets == nil {
			return nil, fmt.Errorf("tenant %s routing config references a secret but no resolver is configured", tenant.ID)
		}
		resolved, err := r.secrets.Resolve(ctx, cfg.PasswordSecretARN)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dedicated credentials for tenant %s: %w", tenant.ID, err)
		}
		password = resolved
	}

	driver, err := r.dial(cfg.URI, cfg.Username, password)
	if err != nil {
		return nil, fmt.Errorf("failed to dial dedicated deployment for tenant %s: %w", tenant.ID, err)
	}
	r.dedicated[tenant.ID] = driver
	return driver, nil
}

// DatabaseName returns the logical database for the tenant. Shared-tier
// tenants get a name derived deterministically from the tenant id, so each
// one has its own namespace on the common cluster in addition to the
// tenant-id property filter on every statement.
func (r *Router) DatabaseName(tenant *tenancy.Tenant) string {
	if tenant.Routing.Dedicated() {
		if tenant.Routing.Database != "" {
			return tenant.Routing.Database
		}
		return "neo4j"
	}
	return SharedDatabaseName(tenant.ID)
}

// SharedDatabaseName derives the logical database name for a shared-tier
// tenant. Database names must start with a letter and may contain only
// ASCII letters, digits and dashes, so the tenant id is sanitized.
func SharedDatabaseName(tenantID string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(tenantID) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '-' || c == '_' || c == '.':
			b.WriteByte('-')
		}
	}
	return "tenant-" + b.String()
}

// Close shuts down all cached dedicated drivers. The shared pool belongs
// to the composition root and is left open.
func (r *Router) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for tenantID, driver := range r.dedicated {
		if err := driver.Close(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close dedicated driver for tenant %s: %w", tenantID, err)
		}
		delete(r.dedicated, tenantID)
	}
	return firstErr
}
