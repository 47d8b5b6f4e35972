// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

// Package billing pushes closed-period usage from the ledger to the
// external billing processor. Delivery is exactly-once per (tenant,
// period): the ledger's one-way reported flag gates the push on our side,
// and an idempotency identifier derived from the tenant and period start
// deduplicates on the processor's side.
package billing
