// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"graphplane/platform/metering"
	"graphplane/platform/tenancy"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	components := map[string]bool{
		"ledger": s.deps.Ledger.Ping(r.Context()) == nil,
	}

	status := "healthy"
	code := http.StatusOK
	for _, ok := range components {
		if !ok {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	s.writeJSON(w, map[string]interface{}{
		"status":     status,
		"service":    "graphplane",
		"timestamp":  time.Now().UTC(),
		"components": components,
	})
}

func (s *Server) usageHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	summary, err := s.deps.Usage.GetUsageSummary(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, summary)
}

func (s *Server) limitsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	decision, err := s.deps.Enforcer.Check(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, decision)
}

// billingSyncHandler triggers a usage report for one tenant. The period
// defaults to the previous (closed) calendar month; an explicit period may
// be passed as ?period=YYYY-MM.
func (s *Server) billingSyncHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	if s.deps.Synchronizer == nil {
		s.sendErrorResponse(w, "Billing is not configured", http.StatusConflict)
		return
	}

	var periodStart time.Time
	if p := r.URL.Query().Get("period"); p != "" {
		parsed, err := time.Parse("2006-01", p)
		if err != nil {
			s.sendErrorResponse(w, "Invalid period, expected YYYY-MM", http.StatusBadRequest)
			return
		}
		periodStart = parsed.UTC()
	} else {
		currentStart, _ := metering.CurrentPeriod(time.Now())
		periodStart = currentStart.AddDate(0, -1, 0)
	}

	if err := s.deps.Synchronizer.ReportUsage(r.Context(), tenantID, periodStart); err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, map[string]interface{}{
		"status":       "ok",
		"period_start": periodStart.Format("2006-01"),
	})
}

func (s *Server) jobsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	jobs, err := s.deps.Jobs.ListJobs(r.Context(), tenantID, limit)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, map[string]interface{}{"jobs": jobs})
}

func (s *Server) graphStatsHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	client, err := s.clientFor(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	stats, err := client.GetStats(r.Context())
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, stats)
}

func (s *Server) createNodeHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	var req struct {
		Label      string                 `json:"label"`
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client, err := s.clientFor(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	id, err := client.CreateNode(r.Context(), req.Label, req.Properties)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	s.writeJSON(w, map[string]string{"id": id})
}

func (s *Server) findNodesHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenant_id"]
	label := vars["label"]

	filters := make(map[string]interface{})
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}

	client, err := s.clientFor(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	nodes, err := client.FindNodes(r.Context(), label, filters)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, map[string]interface{}{"nodes": nodes, "count": len(nodes)})
}

func (s *Server) createRelationshipHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	var req struct {
		FromID     string                 `json:"from_id"`
		ToID       string                 `json:"to_id"`
		Type       string                 `json:"type"`
		Properties map[string]interface{} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client, err := s.clientFor(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	created, err := client.CreateRelationship(r.Context(), req.FromID, req.ToID, req.Type, req.Properties)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	code := http.StatusCreated
	if created == 0 {
		// Endpoints not found within the tenant's data.
		code = http.StatusNotFound
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	s.writeJSON(w, map[string]int{"created": created})
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	var req struct {
		Cypher string                 `json:"cypher"`
		Params map[string]interface{} `json:"params"`
		Write  bool                   `json:"write"`
		Meter  bool                   `json:"meter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Cypher == "" {
		s.sendErrorResponse(w, "cypher is required", http.StatusBadRequest)
		return
	}

	client, err := s.clientFor(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if req.Write {
		result, err := client.Run(r.Context(), req.Cypher, req.Params)
		if err != nil {
			s.sendError(w, r, tenantID, err)
			return
		}
		s.writeJSON(w, result)
		return
	}

	records, err := client.Read(r.Context(), req.Cypher, req.Params, req.Meter)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"records": records, "count": len(records)})
}

func (s *Server) pageRankHandler(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]

	var req struct {
		NodeLabel        string `json:"node_label"`
		RelationshipType string `json:"relationship_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	client, err := s.clientFor(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	ranked, err := client.RunPageRank(r.Context(), req.NodeLabel, req.RelationshipType)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, map[string]interface{}{"results": ranked, "count": len(ranked)})
}

func (s *Server) findSimilarHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tenantID := vars["tenant_id"]
	nodeID := vars["node_id"]

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	client, err := s.clientFor(r.Context(), tenantID)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	similar, err := client.FindSimilar(r.Context(), nodeID, limit)
	if err != nil {
		s.sendError(w, r, tenantID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	s.writeJSON(w, map[string]interface{}{"results": similar, "count": len(similar)})
}

// sendError maps domain errors onto HTTP statuses. Limit denials become
// 429 with the full decision payload so callers can show the user what
// ran out.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, tenantID string, err error) {
	var limitErr *metering.LimitExceededError
	if errors.As(err, &limitErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		s.writeJSON(w, map[string]interface{}{
			"error":  limitErr.Error(),
			"metric": limitErr.Metric,
			"used":   limitErr.Used,
			"limit":  limitErr.Limit,
			"usage":  limitErr.Snapshot,
		})
		return
	}

	switch {
	case errors.Is(err, tenancy.ErrTenantNotFound), errors.Is(err, metering.ErrTenantNotFound):
		s.sendErrorResponse(w, "Tenant not found", http.StatusNotFound)
	case errors.Is(err, metering.ErrEntryNotFound):
		s.sendErrorResponse(w, "No usage recorded for period", http.StatusNotFound)
	case errors.Is(err, metering.ErrInvalidInput):
		s.sendErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.ErrorWithCode(tenantID, "", "Request failed", http.StatusInternalServerError, err, map[string]interface{}{
			"path": r.URL.Path,
		})
		s.sendErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) sendErrorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	s.writeJSON(w, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("", "", "Error encoding response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
