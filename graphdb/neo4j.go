// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package graphdb

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// neo4jDriver adapts the official Neo4j driver to the Driver interface.
type neo4jDriver struct {
	inner neo4j.DriverWithContext
}

// NewNeo4jDriver opens a connection pool against a Neo4j deployment. The
// pool is lazy: invalid credentials or an unreachable host surface at the
// first query, not here.
func NewNeo4jDriver(uri, username, password string) (Driver, error) {
	inner, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return &neo4jDriver{inner: inner}, nil
}

func (d *neo4jDriver) NewSession(ctx context.Context, config SessionConfig) Session {
	mode := neo4j.AccessModeWrite
	if config.AccessMode == AccessModeRead {
		mode = neo4j.AccessModeRead
	}
	inner := d.inner.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: config.Database,
		AccessMode:   mode,
	})
	return &neo4jSession{inner: inner}
}

func (d *neo4jDriver) VerifyConnectivity(ctx context.Context) error {
	return d.inner.VerifyConnectivity(ctx)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.inner.Close(ctx)
}

type neo4jSession struct {
	inner neo4j.SessionWithContext
}

func (s *neo4jSession) Run(ctx context.Context, cypher string, params map[string]interface{}) (Result, error) {
	inner, err := s.inner.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return &neo4jResult{inner: inner}, nil
}

func (s *neo4jSession) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}

type neo4jResult struct {
	inner neo4j.ResultWithContext
}

func (r *neo4jResult) Collect(ctx context.Context) ([]Record, error) {
	inner, err := r.inner.Collect(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(inner))
	for _, rec := range inner {
		records = append(records, Record(rec.AsMap()))
	}
	return records, nil
}

func (r *neo4jResult) Consume(ctx context.Context) (Counters, error) {
	summary, err := r.inner.Consume(ctx)
	if err != nil {
		return Counters{}, err
	}
	c := summary.Counters()
	return Counters{
		NodesCreated:         c.NodesCreated(),
		NodesDeleted:         c.NodesDeleted(),
		RelationshipsCreated: c.RelationshipsCreated(),
		RelationshipsDeleted: c.RelationshipsDeleted(),
	}, nil
}
