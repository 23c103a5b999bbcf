// Gavel - Legal-deadline risk engine for loan portfolios.
// Copyright (c) 2025 opensource.lending
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-lending/gavel/internal/api"
	"github.com/opensource-lending/gavel/internal/batch"
	"github.com/opensource-lending/gavel/internal/bus"
	"github.com/opensource-lending/gavel/internal/cache"
	"github.com/opensource-lending/gavel/internal/domain"
	"github.com/opensource-lending/gavel/internal/policy"
	"github.com/opensource-lending/gavel/internal/repository"
	"github.com/opensource-lending/gavel/internal/rulestore"
	"github.com/opensource-lending/gavel/internal/sol"
	"github.com/opensource-lending/gavel/internal/stats"
	"github.com/opensource-lending/gavel/internal/timeline"
	"github.com/opensource-lending/gavel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// GlobalTenantID is used for jurisdiction rules that apply to all tenants.
const GlobalTenantID = "*"

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("GAVEL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting gavel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("GAVEL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize risk policy engine and load per-jurisdiction overrides
	policies, err := policy.NewEngine()
	if err != nil {
		slog.Error("failed to initialize risk policy engine", "error", err)
		os.Exit(1)
	}
	if err := loadPoliciesFromDatabase(ctx, repo, policies); err != nil {
		slog.Error("failed to load risk policies", "error", err)
		os.Exit(1)
	}
	slog.Info("risk policy engine initialized", "overrides", policies.OverrideCount())

	// Jurisdiction rules read through the cache
	ruleStore := rulestore.NewCachedStore(
		rulestore.NewRepositoryStore(repo),
		cacheImpl,
		cfg.Batch.RuleCacheTTL,
	)

	// Core calculators
	calculator := sol.NewCalculator(policies, nil)
	projector := timeline.NewProjector(nil)

	// Batch runner and portfolio stats
	runner := batch.NewRunner(repo, ruleStore, calculator, busImpl, cfg.Batch.MaxWorkers)
	statsSvc := stats.NewService(repo, cacheImpl)

	// Initialize async recompute worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("GAVEL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, runner)

		tenantIDs := []string{GlobalTenantID}
		if envTenants := os.Getenv("GAVEL_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		if err := asyncWorker.Start(tenantIDs); err != nil {
			slog.Error("failed to start recompute worker", "error", err)
		}
	}

	// Optional scheduled batch runs
	if cfg.Batch.Interval > 0 {
		go runScheduledBatches(ctx, runner, cfg.Batch.Interval)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, ruleStore, calculator, projector, policies, runner, statsSvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("gavel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop recompute worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("gavel shutdown complete")
}

// loadPoliciesFromDatabase installs risk policy overrides from the stored
// jurisdiction rules. Rules are configured via POST /jurisdictions - no
// hardcoded defaults beyond the built-in tier policy.
func loadPoliciesFromDatabase(ctx context.Context, repo domain.Repository, policies *policy.Engine) error {
	rules, err := repo.ListJurisdictionRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list jurisdiction rules from database", "error", err)
		return nil // Start with the default policy - rules can be added via API
	}

	if len(rules) > 0 {
		slog.Info("loading jurisdiction rules from database", "count", len(rules))
		return policies.LoadFromRules(rules)
	}

	slog.Info("no jurisdiction rules in database - configure via POST /jurisdictions API")
	return nil
}

// runScheduledBatches recomputes the global tenant's portfolio on a fixed
// interval until the context is cancelled.
func runScheduledBatches(ctx context.Context, runner *batch.Runner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := runner.Run(ctx, GlobalTenantID); err != nil {
				slog.Error("scheduled batch run failed", "error", err)
			}
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🔨 GAVEL                    ║")
	fmt.Println("  ║    Legal-Deadline Risk Engine             ║")
	fmt.Println("  ║     Every statute, every loan.            ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /sol/evaluate           - Evaluate SOL for a loan")
	fmt.Println("    GET  /sol/results/{loanId}   - Get a persisted SOL result")
	fmt.Println("    POST /timeline/project       - Project a foreclosure timeline")
	fmt.Println("    POST /loans                  - Save a loan legal state")
	fmt.Println("    GET  /loans/{loanId}         - Get a loan legal state")
	fmt.Println("    GET  /jurisdictions          - List jurisdiction rules")
	fmt.Println("    POST /jurisdictions          - Create a jurisdiction rule")
	fmt.Println("    POST /jurisdictions/reload   - Hot-reload rules from database")
	fmt.Println("    POST /batch/run              - Recalculate the whole portfolio")
	fmt.Println("    GET  /stats/risk             - Portfolio risk distribution")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}
