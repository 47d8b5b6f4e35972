// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

// Package server exposes the metering, graph and billing operations over
// HTTP. Every tenant-scoped route carries the tenant id in the path; the
// handler resolves the tenant's graph backend per request through the
// router.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"graphplane/platform/billing"
	"graphplane/platform/config"
	"graphplane/platform/graphdb"
	"graphplane/platform/metering"
	"graphplane/platform/shared/logger"
	"graphplane/platform/tenancy"
)

// Deps are the wired components the server serves. The composition root
// owns their lifecycles; the server only routes requests to them.
type Deps struct {
	DB           *sql.DB
	Ledger       metering.Repository
	Enforcer     *metering.Enforcer
	Usage        *metering.Service
	Directory    tenancy.Directory
	GraphRouter  *graphdb.Router
	Jobs         graphdb.JobStore
	Synchronizer *billing.Synchronizer
}

// Server is the HTTP front of the platform.
type Server struct {
	cfg  *config.Config
	deps Deps
	log  *logger.Logger
	http *http.Server
}

// New creates a server with its routes registered.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  logger.New("server"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/api/v1/tenants/{tenant_id}/usage", s.usageHandler).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/limits", s.limitsHandler).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/billing/sync", s.billingSyncHandler).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/jobs", s.jobsHandler).Methods("GET")

	r.HandleFunc("/api/v1/tenants/{tenant_id}/graph/stats", s.graphStatsHandler).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/graph/nodes", s.createNodeHandler).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/graph/nodes/{label}", s.findNodesHandler).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/graph/relationships", s.createRelationshipHandler).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/graph/query", s.queryHandler).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/graph/pagerank", s.pageRankHandler).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/graph/similar/{node_id}", s.findSimilarHandler).Methods("GET")

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      c.Handler(r),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.log.Info("", "", "HTTP server listening", map[string]interface{}{
		"addr": s.http.Addr,
	})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// clientFor resolves the tenant and binds a graph client to its backend
// for the duration of one request.
func (s *Server) clientFor(ctx context.Context, tenantID string) (*graphdb.TenantClient, error) {
	tenant, err := s.deps.Directory.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return graphdb.NewTenantClient(ctx, tenant, s.deps.GraphRouter, s.deps.Enforcer, s.deps.Ledger, s.deps.Jobs)
}
