// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_GP_DSN", "postgres://app@db/graphplane")
	t.Setenv("TEST_GP_NEO4J_PW", "s3cr3t")

	path := writeConfig(t, `
server:
  port: 9090
postgres:
  dsn: ${TEST_GP_DSN}
graph:
  uri: ${TEST_GP_NEO4J_URI:-bolt://fallback:7687}
  username: neo4j
  password: $TEST_GP_NEO4J_PW
billing:
  stripe_api_key: sk_test_123
  meter_event_name: graph_queries
  sync_interval_minutes: 15
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://app@db/graphplane" {
		t.Errorf("expected expanded DSN, got %q", cfg.Postgres.DSN)
	}
	if cfg.Graph.URI != "bolt://fallback:7687" {
		t.Errorf("expected default fallback URI, got %q", cfg.Graph.URI)
	}
	if cfg.Graph.Password != "s3cr3t" {
		t.Errorf("expected $VAR form expanded, got %q", cfg.Graph.Password)
	}
	if !cfg.Billing.Enabled() {
		t.Error("expected billing enabled with an API key")
	}
	if cfg.Billing.SyncInterval() != 15*time.Minute {
		t.Errorf("expected 15m sync interval, got %v", cfg.Billing.SyncInterval())
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app@db/graphplane")
	t.Setenv("NEO4J_URI", "")
	t.Setenv("STRIPE_API_KEY", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Graph.URI != "bolt://localhost:7687" {
		t.Errorf("expected default graph URI, got %q", cfg.Graph.URI)
	}
	if cfg.Billing.Enabled() {
		t.Error("expected billing disabled without an API key")
	}
	if cfg.Billing.SyncInterval() != time.Hour {
		t.Errorf("expected default hourly sync, got %v", cfg.Billing.SyncInterval())
	}
}

func TestLoad_MissingDSNFails(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(""); err == nil {
		t.Error("expected validation failure without a postgres DSN")
	}
}

func TestLoad_BadPortFails(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app@db/graphplane")
	path := writeConfig(t, "server:\n  port: 99999\n")

	if _, err := Load(path); err == nil {
		t.Error("expected validation failure for out-of-range port")
	}
}
