// Package main is the entry point for the ranking reconciliation tool.
// It re-sorts users' ranking lists whose tier or rank ordering has
// drifted and reassigns contiguous ranks, touching only rows that
// actually change.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/edwds/mimy/internal/config"
	"github.com/edwds/mimy/internal/db"
	"github.com/edwds/mimy/internal/middleware"
	"github.com/edwds/mimy/internal/ranklist"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to an optional YAML config file")
	ownerID := flag.Int64("owner", 0, "reconcile a single owner's list (0 reconciles every owner)")
	dryRun := flag.Bool("dry-run", false, "report planned changes without writing")
	flag.Parse()

	if *help {
		fmt.Println("Mimy Ranking Reconciler")
		fmt.Println()
		fmt.Println("Usage: reconcile [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	repo := ranklist.NewPostgresRepository(database, logger)
	manager := ranklist.NewManager(repo, nil, logger, nil)

	var owners []int64
	if *ownerID > 0 {
		owners = []int64{*ownerID}
	} else {
		owners, err = repo.Owners(ctx)
		if err != nil {
			logger.Error("failed to list owners", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("reconciliation starting", "owners", len(owners), "dry_run", *dryRun)

	var reconciled, rowsChanged, failed int
	for _, owner := range owners {
		if *dryRun {
			plan, err := manager.PlanReconcile(ctx, owner)
			if err != nil {
				logger.Error("failed to plan reconcile", "owner_id", owner, "error", err)
				failed++
				continue
			}
			if len(plan) > 0 {
				logger.Info("would reconcile", "owner_id", owner, "rows", len(plan))
				reconciled++
				rowsChanged += len(plan)
			}
			continue
		}

		changed, err := manager.Reconcile(ctx, owner)
		if err != nil {
			logger.Error("failed to reconcile", "owner_id", owner, "error", err)
			failed++
			continue
		}
		if changed > 0 {
			reconciled++
			rowsChanged += changed
		}
	}

	logger.Info("reconciliation finished",
		"owners_checked", len(owners),
		"owners_changed", reconciled,
		"rows_changed", rowsChanged,
		"failed", failed,
	)

	if failed > 0 {
		os.Exit(1)
	}
}
