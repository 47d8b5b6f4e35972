// Copyright 2025 GraphPlane
// SPDX-License-Identifier: BUSL-1.1

package server

import (
	"context"
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver

	"graphplane/platform/billing"
	"graphplane/platform/config"
	"graphplane/platform/graphdb"
	"graphplane/platform/metering"
	"graphplane/platform/shared/logger"
	"graphplane/platform/tenancy"
)

// Run is the composition root: it loads configuration, opens the shared
// resources, wires every component and serves until SIGINT/SIGTERM.
//
// The shared graph pool is opened and closed here, once, and handed to the
// router; the router only owns the dedicated per-tenant pools it dials
// itself.
func Run(configPath string) error {
	log := logger.New("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	ledger := metering.NewPostgresRepository(db)
	directory := tenancy.NewPostgresDirectory(db)
	enforcer := metering.NewEnforcer(directory, ledger)
	usage := metering.NewService(directory, ledger)
	jobs := graphdb.NewPostgresJobStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared graph cluster pool, owned here.
	shared, err := graphdb.NewNeo4jDriver(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password)
	if err != nil {
		return fmt.Errorf("failed to open shared graph pool: %w", err)
	}
	defer shared.Close(context.Background())

	routerOpts := []graphdb.RouterOption{}
	if cfg.AWS.SecretsEnabled {
		resolver, err := graphdb.NewAWSSecretResolver(ctx, graphdb.AWSSecretResolverOptions{Region: cfg.AWS.Region})
		if err != nil {
			return fmt.Errorf("failed to initialize secret resolver: %w", err)
		}
		routerOpts = append(routerOpts, graphdb.WithSecretResolver(resolver))
	}
	graphRouter := graphdb.NewRouter(shared, routerOpts...)
	defer graphRouter.Close(context.Background())

	var synchronizer *billing.Synchronizer
	if cfg.Billing.Enabled() {
		provider := billing.NewStripeProvider(cfg.Billing.StripeAPIKey, cfg.Billing.MeterEventName)

		syncOpts := []billing.SynchronizerOption{}
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()
			syncOpts = append(syncOpts, billing.WithSyncLock(billing.NewSyncLock(rdb, 30*time.Second)))
		}

		synchronizer = billing.NewSynchronizer(provider, ledger, directory, syncOpts...)
		go synchronizer.RunPeriodic(ctx, cfg.Billing.SyncInterval())
		log.Info("", "", "Billing synchronizer started", map[string]interface{}{
			"interval": cfg.Billing.SyncInterval().String(),
		})
	} else {
		log.Info("", "", "Billing disabled, usage reporting off", nil)
	}

	srv := New(cfg, Deps{
		DB:           db,
		Ledger:       ledger,
		Enforcer:     enforcer,
		Usage:        usage,
		Directory:    directory,
		GraphRouter:  graphRouter,
		Jobs:         jobs,
		Synchronizer: synchronizer,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("", "", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
