// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the GraphPlane service.
//
// GraphPlane is the multi-tenant graph analytics platform:
// - Routes each tenant to its graph backend (shared cluster or dedicated)
// - Meters every graph operation into a per-period usage ledger
// - Enforces plan limits before expensive operations
// - Reports closed-period usage to the billing processor exactly once
//
// Usage:
//
//	./graphplaned [-config config.yaml]
//
// Environment Variables:
//
//	DATABASE_URL - PostgreSQL connection string
//	NEO4J_URI - shared graph cluster URI (default: bolt://localhost:7687)
//	NEO4J_USERNAME, NEO4J_PASSWORD - shared cluster credentials
//	STRIPE_API_KEY - billing processor key (optional, disables billing when unset)
//	REDIS_ADDR - coordination store for the billing sync lock (optional)
package main

import (
	"flag"
	"log"

	"graphplane/platform/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := server.Run(*configPath); err != nil {
		log.Fatalf("graphplaned: %v", err)
	}
}
