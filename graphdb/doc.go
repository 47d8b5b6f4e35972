// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

// Package graphdb is the tenant-isolated access layer for the graph
// analytics backend.
//
// Application code never talks to the graph store directly. It constructs
// a TenantClient per request, and every statement the client generates
// filters on the tenant id, so a query issued on behalf of one tenant can
// never read or write another tenant's data. Shared-tier tenants
// additionally get their own logical database on the common cluster,
// derived deterministically from the tenant id; dedicated-tier tenants
// bring their own deployment, resolved by the Router.
//
// Every mutating or resource-intensive operation measures its own cost
// (nodes and relationships touched, elapsed compute seconds) and records
// it in the usage ledger before returning. Algorithmic jobs additionally
// log a job-history row; job history and ledger are two independent
// best-effort writes, not one transaction.
package graphdb
