// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

// Package metering tracks per-tenant graph usage against subscription plan
// limits. It owns the usage ledger (one row per tenant per billing period),
// the static plan catalog, and the limit enforcer that gates expensive
// graph operations.
//
// The ledger is the source of truth for billing. Counters only ever grow
// within a period; a new period starts a new row. Increments are a single
// atomic upsert at the storage layer, so concurrent requests never lose
// updates.
//
// Limit checks are advisory, not transactional: a burst of concurrent
// requests can all pass the check and push the ledger past the limit by up
// to concurrency x per-op cost before the next check catches it. This is
// an accepted soft-limit model.
package metering
