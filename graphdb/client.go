// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package graphdb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"graphplane/platform/metering"
	"graphplane/platform/shared/logger"
	"graphplane/platform/tenancy"
)

// identifierPattern limits labels, relationship types and property names
// interpolated into Cypher. Everything else travels as a parameter.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// QueryResult carries the rows and the structural change summary of one
// statement.
type QueryResult struct {
	Records  []Record
	Counters Counters
}

// RankedNode is one PageRank result.
type RankedNode struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// SimilarNode is one similarity result; Score is the shared-neighbor count.
type SimilarNode struct {
	ID    string `json:"id"`
	Score int64  `json:"score"`
}

// GraphStats is the administrative view of a tenant's graph.
type GraphStats struct {
	Nodes         int64    `json:"nodes"`
	Relationships int64    `json:"relationships"`
	Labels        []string `json:"labels"`
}

// TenantClient is the façade application code uses to touch the graph
// store. It is bound to one tenant for the lifetime of one logical
// request or session; it is not a singleton and not safe to share across
// tenants.
//
// Every statement the client generates filters on the tenant id. Expensive
// operations check plan limits first; all metered operations write their
// measured cost into the usage ledger before returning.
type TenantClient struct {
	tenantID string
	driver   Driver
	database string
	enforcer *metering.Enforcer
	ledger   metering.Repository
	jobs     JobStore
	log      *logger.Logger
	now      func() time.Time

	// Session running totals, used only for job logging. The ledger is
	// the source of truth for billing.
	sessionRecords        int64
	sessionComputeSeconds int64
}

// NewTenantClient resolves the tenant's backend through the router and
// binds a client to it. Resolution does not touch the network; an
// unreachable or misconfigured backend fails at the first query.
func NewTenantClient(ctx context.Context, tenant *tenancy.Tenant, router *Router, enforcer *metering.Enforcer, ledger metering.Repository, jobs JobStore) (*TenantClient, error) {
	driver, err := router.ResolveDriver(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return &TenantClient{
		tenantID: tenant.ID,
		driver:   driver,
		database: router.DatabaseName(tenant),
		enforcer: enforcer,
		ledger:   ledger,
		jobs:     jobs,
		log:      logger.New("graphdb"),
		now:      time.Now,
	}, nil
}

// TenantID returns the tenant this client is bound to.
func (c *TenantClient) TenantID() string { return c.tenantID }

// Database returns the resolved logical database name.
func (c *TenantClient) Database() string { return c.database }

// CheckLimits asks the enforcer whether the tenant may run another metered
// operation. A denial comes back as *metering.LimitExceededError carrying
// the metric, the usage snapshot and the reason.
func (c *TenantClient) CheckLimits(ctx context.Context) error {
	decision, err := c.enforcer.Check(ctx, c.tenantID)
	if err != nil {
		return err
	}
	return decision.Err()
}

// Run executes one write statement. The statement runs in its own session,
// opened and closed around this single call. The tenantId parameter is
// always injected; statements are expected to filter on it.
//
// When the result summary shows structural changes, the measured cost
// (entities touched plus elapsed whole seconds, rounded up) is written to
// the usage ledger before returning.
func (c *TenantClient) Run(ctx context.Context, cypher string, params map[string]interface{}) (*QueryResult, error) {
	records, counters, elapsed, err := c.execute(ctx, AccessModeWrite, cypher, c.withTenant(params))
	if err != nil {
		return nil, err
	}

	if !counters.Zero() {
		delta := metering.UsageDelta{
			Queries:        1,
			Nodes:          int64(counters.NodesCreated + counters.NodesDeleted),
			Relationships:  int64(counters.RelationshipsCreated + counters.RelationshipsDeleted),
			ComputeSeconds: wholeSeconds(elapsed),
		}
		if _, err := c.ledger.Increment(ctx, c.tenantID, delta); err != nil {
			return nil, fmt.Errorf("failed to record usage: %w", err)
		}
	}

	return &QueryResult{Records: records, Counters: counters}, nil
}

// Read executes one read-only statement. Reads consume quota only when the
// caller asks for metering and the query returned at least one record:
// cheap existence checks stay free, bulk scans do not.
func (c *TenantClient) Read(ctx context.Context, cypher string, params map[string]interface{}, meterUsage bool) ([]Record, error) {
	records, _, _, err := c.execute(ctx, AccessModeRead, cypher, c.withTenant(params))
	if err != nil {
		return nil, err
	}

	if meterUsage && len(records) > 0 {
		delta := metering.UsageDelta{Queries: 1, Nodes: int64(len(records))}
		if _, err := c.ledger.Increment(ctx, c.tenantID, delta); err != nil {
			return nil, fmt.Errorf("failed to record usage: %w", err)
		}
	}

	return records, nil
}

// CreateNode writes one node tagged with the tenant id and returns its id.
// Always increments nodesProcessed by one.
func (c *TenantClient) CreateNode(ctx context.Context, label string, properties map[string]interface{}) (string, error) {
	if err := validateIdentifier(label); err != nil {
		return "", err
	}

	props := make(map[string]interface{}, len(properties)+2)
	for k, v := range properties {
		props[k] = v
	}
	id, _ := props["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	props["id"] = id
	props["tenantId"] = c.tenantID

	cypher := fmt.Sprintf("CREATE (n:`%s`) SET n = $props RETURN n.id AS id", label)
	if _, _, _, err := c.execute(ctx, AccessModeWrite, cypher, map[string]interface{}{"props": props}); err != nil {
		return "", err
	}

	if _, err := c.ledger.Increment(ctx, c.tenantID, metering.UsageDelta{Nodes: 1}); err != nil {
		return "", fmt.Errorf("failed to record usage: %w", err)
	}
	return id, nil
}

// CreateRelationship links two of the tenant's nodes. Both endpoints are
// matched by their own id and the tenant id, so an edge to another
// tenant's node matches nothing and the store reports zero rows affected.
// No error is raised for that case; callers must check the returned count
// to detect a failed link.
func (c *TenantClient) CreateRelationship(ctx context.Context, fromID, toID, relType string, properties map[string]interface{}) (int, error) {
	if err := validateIdentifier(relType); err != nil {
		return 0, err
	}
	if properties == nil {
		properties = map[string]interface{}{}
	}

	cypher := fmt.Sprintf(`
		MATCH (a {id: $fromId, tenantId: $tenantId})
		MATCH (b {id: $toId, tenantId: $tenantId})
		CREATE (a)-[r:`+"`%s`"+`]->(b)
		SET r += $props
		RETURN type(r) AS type`, relType)

	params := map[string]interface{}{
		"fromId":   fromID,
		"toId":     toID,
		"tenantId": c.tenantID,
		"props":    properties,
	}

	_, counters, _, err := c.execute(ctx, AccessModeWrite, cypher, params)
	if err != nil {
		return 0, err
	}

	created := counters.RelationshipsCreated
	if created > 0 {
		if _, err := c.ledger.Increment(ctx, c.tenantID, metering.UsageDelta{Relationships: int64(created)}); err != nil {
			return created, fmt.Errorf("failed to record usage: %w", err)
		}
	}
	return created, nil
}

// FindNodes returns the tenant's nodes with the given label matching all
// equality filters. The limit check runs first; enumeration is one of the
// operations that always consumes quota.
func (c *TenantClient) FindNodes(ctx context.Context, label string, filters map[string]interface{}) ([]Record, error) {
	if err := c.CheckLimits(ctx); err != nil {
		return nil, err
	}
	if err := validateIdentifier(label); err != nil {
		return nil, err
	}

	params := map[string]interface{}{"tenantId": c.tenantID}
	var conditions []string

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, key := range keys {
		if err := validateIdentifier(key); err != nil {
			return nil, err
		}
		param := fmt.Sprintf("p%d", i)
		conditions = append(conditions, fmt.Sprintf("n.`%s` = $%s", key, param))
		params[param] = filters[key]
	}

	cypher := fmt.Sprintf("MATCH (n:`%s` {tenantId: $tenantId})", label)
	if len(conditions) > 0 {
		cypher += " WHERE " + strings.Join(conditions, " AND ")
	}
	cypher += " RETURN properties(n) AS node"

	records, _, _, err := c.execute(ctx, AccessModeRead, cypher, params)
	if err != nil {
		return nil, err
	}

	delta := metering.UsageDelta{Queries: 1, Nodes: int64(len(records))}
	if _, err := c.ledger.Increment(ctx, c.tenantID, delta); err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}
	return records, nil
}

// RunPageRank ranks the tenant's nodes of one label connected by one
// relationship type. The algorithm runs against a uniquely-named ephemeral
// projection scoped to the tenant's data; the projection is always dropped
// afterwards, including when the ranking stage fails, so repeated calls
// never leak named projections.
func (c *TenantClient) RunPageRank(ctx context.Context, nodeLabel, relType string) ([]RankedNode, error) {
	if err := c.CheckLimits(ctx); err != nil {
		return nil, err
	}
	if err := validateIdentifier(nodeLabel); err != nil {
		return nil, err
	}
	if err := validateIdentifier(relType); err != nil {
		return nil, err
	}

	graphName := fmt.Sprintf("pagerank-%s-%s", SharedDatabaseName(c.tenantID), uuid.NewString())
	started := c.now()

	projectCypher := fmt.Sprintf(`
		CALL gds.graph.project.cypher(
			$graph,
			'MATCH (n:`+"`%s`"+` {tenantId: $tenantId}) RETURN id(n) AS id',
			'MATCH (a:`+"`%s`"+` {tenantId: $tenantId})-[:`+"`%s`"+`]->(b:`+"`%s`"+` {tenantId: $tenantId}) RETURN id(a) AS source, id(b) AS target',
			{parameters: {tenantId: $tenantId}}
		)`, nodeLabel, nodeLabel, relType, nodeLabel)

	if _, _, _, err := c.execute(ctx, AccessModeWrite, projectCypher, map[string]interface{}{
		"graph":    graphName,
		"tenantId": c.tenantID,
	}); err != nil {
		return nil, fmt.Errorf("failed to create graph projection: %w", err)
	}
	defer c.dropProjection(ctx, graphName)

	streamCypher := `
		CALL gds.pageRank.stream($graph) YIELD nodeId, score
		RETURN gds.util.asNode(nodeId).id AS id, score
		ORDER BY score DESC`

	records, _, _, err := c.execute(ctx, AccessModeRead, streamCypher, map[string]interface{}{"graph": graphName})
	finished := c.now()
	if err != nil {
		c.recordJob(ctx, "pagerank", JobStatusFailed, 0, started, finished, err)
		return nil, fmt.Errorf("failed to run pagerank: %w", err)
	}

	ranked := make([]RankedNode, 0, len(records))
	for _, rec := range records {
		ranked = append(ranked, RankedNode{
			ID:    asString(rec["id"]),
			Score: asFloat64(rec["score"]),
		})
	}

	c.recordJob(ctx, "pagerank", JobStatusCompleted, int64(len(ranked)), started, finished, nil)
	return ranked, nil
}

// FindSimilar returns the tenant's nodes most similar to the given node,
// scored by shared-neighbor count.
func (c *TenantClient) FindSimilar(ctx context.Context, nodeID string, limit int) ([]SimilarNode, error) {
	if err := c.CheckLimits(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	started := c.now()
	cypher := `
		MATCH (n {id: $id, tenantId: $tenantId})--(shared)--(m {tenantId: $tenantId})
		WHERE m.id <> $id
		RETURN m.id AS id, count(shared) AS score
		ORDER BY score DESC
		LIMIT $limit`

	records, _, _, err := c.execute(ctx, AccessModeRead, cypher, map[string]interface{}{
		"id":       nodeID,
		"tenantId": c.tenantID,
		"limit":    limit,
	})
	finished := c.now()
	if err != nil {
		c.recordJob(ctx, "similarity", JobStatusFailed, 0, started, finished, err)
		return nil, fmt.Errorf("failed to find similar nodes: %w", err)
	}

	similar := make([]SimilarNode, 0, len(records))
	for _, rec := range records {
		similar = append(similar, SimilarNode{
			ID:    asString(rec["id"]),
			Score: asInt64(rec["score"]),
		})
	}

	c.recordJob(ctx, "similarity", JobStatusCompleted, int64(len(similar)), started, finished, nil)
	return similar, nil
}

// GetStats returns node count, relationship count and distinct labels for
// the tenant. Dashboard operation; exempt from metering.
func (c *TenantClient) GetStats(ctx context.Context) (*GraphStats, error) {
	stats := &GraphStats{}

	records, _, _, err := c.execute(ctx, AccessModeRead,
		"MATCH (n {tenantId: $tenantId}) RETURN count(n) AS c",
		map[string]interface{}{"tenantId": c.tenantID})
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		stats.Nodes = asInt64(records[0]["c"])
	}

	records, _, _, err = c.execute(ctx, AccessModeRead,
		"MATCH (a {tenantId: $tenantId})-[r]->(b {tenantId: $tenantId}) RETURN count(r) AS c",
		map[string]interface{}{"tenantId": c.tenantID})
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		stats.Relationships = asInt64(records[0]["c"])
	}

	records, _, _, err = c.execute(ctx, AccessModeRead,
		"MATCH (n {tenantId: $tenantId}) UNWIND labels(n) AS label RETURN DISTINCT label",
		map[string]interface{}{"tenantId": c.tenantID})
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		stats.Labels = append(stats.Labels, asString(rec["label"]))
	}

	return stats, nil
}

// GetUsage reads the tenant's current-period ledger entry for display.
func (c *TenantClient) GetUsage(ctx context.Context) (*metering.LedgerEntry, error) {
	return c.ledger.GetOrCreate(ctx, c.tenantID)
}

// execute runs one statement in a fresh session scoped to the tenant's
// database, and closes the session before returning.
func (c *TenantClient) execute(ctx context.Context, mode AccessMode, cypher string, params map[string]interface{}) ([]Record, Counters, time.Duration, error) {
	started := c.now()
	session := c.driver.NewSession(ctx, SessionConfig{Database: c.database, AccessMode: mode})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, Counters{}, 0, fmt.Errorf("query execution failed: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, Counters{}, 0, fmt.Errorf("failed to collect results: %w", err)
	}
	counters, err := result.Consume(ctx)
	if err != nil {
		return nil, Counters{}, 0, fmt.Errorf("failed to consume result summary: %w", err)
	}
	return records, counters, c.now().Sub(started), nil
}

// dropProjection removes an ephemeral projection. It runs on a detached
// context so cleanup still happens when the caller's context is already
// canceled; a failed drop is logged, not propagated.
func (c *TenantClient) dropProjection(ctx context.Context, graphName string) {
	dropCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	_, _, _, err := c.execute(dropCtx, AccessModeWrite,
		"CALL gds.graph.drop($graph, false)",
		map[string]interface{}{"graph": graphName})
	if err != nil {
		c.log.Warn(c.tenantID, "", "Failed to drop graph projection", map[string]interface{}{
			"graph": graphName,
			"error": err.Error(),
		})
	}
}

// recordJob performs the dual bookkeeping for algorithmic jobs: a job
// history row and, for completed jobs, a ledger increment for the same
// work. The two writes are independent and best-effort; one failing does
// not stop the other.
func (c *TenantClient) recordJob(ctx context.Context, algorithm, status string, records int64, started, finished time.Time, jobErr error) {
	durationSeconds := wholeSeconds(finished.Sub(started))
	c.sessionRecords += records
	c.sessionComputeSeconds += durationSeconds

	job := &JobRecord{
		ID:               uuid.NewString(),
		TenantID:         c.tenantID,
		Algorithm:        algorithm,
		Status:           status,
		RecordsProcessed: records,
		DurationSeconds:  durationSeconds,
		StartedAt:        started,
		FinishedAt:       finished,
	}
	if jobErr != nil {
		job.Error = jobErr.Error()
	}

	if c.jobs != nil {
		if err := c.jobs.SaveJob(ctx, job); err != nil {
			c.log.Error(c.tenantID, "", "Failed to save job history", map[string]interface{}{
				"algorithm": algorithm,
				"error":     err.Error(),
			})
		}
	}

	if status == JobStatusCompleted {
		delta := metering.UsageDelta{ComputeSeconds: durationSeconds, Nodes: records}
		if _, err := c.ledger.Increment(ctx, c.tenantID, delta); err != nil {
			c.log.Error(c.tenantID, "", "Failed to record job usage", map[string]interface{}{
				"algorithm": algorithm,
				"error":     err.Error(),
			})
		}
	}

	c.log.InfoWithDuration(c.tenantID, "", "Algorithm job finished",
		float64(finished.Sub(started).Milliseconds()), map[string]interface{}{
			"algorithm":               algorithm,
			"status":                  status,
			"records":                 records,
			"session_records":         c.sessionRecords,
			"session_compute_seconds": c.sessionComputeSeconds,
		})
}

// withTenant injects the tenantId parameter without mutating the caller's
// map.
func (c *TenantClient) withTenant(params map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged["tenantId"] = c.tenantID
	return merged
}

func validateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: invalid identifier %q", metering.ErrInvalidInput, name)
	}
	return nil
}

// wholeSeconds rounds elapsed time up to whole seconds; every operation
// costs at least one.
func wholeSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	return int64((d + time.Second - 1) / time.Second)
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
