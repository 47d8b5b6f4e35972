// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package graphdb

import "context"

// AccessMode selects the session's routing inside a causal cluster.
type AccessMode int

const (
	AccessModeWrite AccessMode = iota
	AccessModeRead
)

// SessionConfig configures one query-execution session.
type SessionConfig struct {
	Database   string
	AccessMode AccessMode
}

// Driver is the narrow surface the client and router need from a graph
// database connection pool. The production implementation wraps the Neo4j
// driver; tests substitute fakes.
type Driver interface {
	NewSession(ctx context.Context, config SessionConfig) Session
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Session executes parameterized statements. Sessions are cheap and are
// opened, used for exactly one statement, and closed; reusing a session
// across calls risks leaking state between tenants.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]interface{}) (Result, error)
	Close(ctx context.Context) error
}

// Record is one row of a query result, keyed by return alias.
type Record map[string]interface{}

// Counters is the structural change summary of one statement.
type Counters struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
}

// Zero reports whether the statement changed nothing structurally.
func (c Counters) Zero() bool {
	return c.NodesCreated == 0 && c.NodesDeleted == 0 &&
		c.RelationshipsCreated == 0 && c.RelationshipsDeleted == 0
}

// Result is a streamed query result. Collect drains the records; Consume
// discards any remainder and returns the change summary.
type Result interface {
	Collect(ctx context.Context) ([]Record, error)
	Consume(ctx context.Context) (Counters, error)
}
