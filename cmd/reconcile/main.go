package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brightbooks/recon-engine/internal/application/reconcile"
	"github.com/brightbooks/recon-engine/internal/cli"
	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
	"github.com/brightbooks/recon-engine/internal/infrastructure/logging"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

func main() {
	flags := cli.ParseReconcileFlags()

	cfg := config.LoadOrEnv(flags.ConfigFile)
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "reconcile")

	cli.PrintHeader("reconcile", flags.DryRun)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	if flags.Backup && !flags.DryRun {
		path := backupPath(cfg.Storage.BackupDir)
		if err := store.Backup(path); err != nil {
			logger.Error("backup failed, refusing to continue", "path", path, "error", err)
			os.Exit(1)
		}
		logger.Info("database backed up", "path", path)
	}

	runCfg := flags.Apply(cfg.Reconcile)
	orchestrator, err := reconcile.New(store, runCfg, logger, nil)
	if err != nil {
		logger.Error("invalid run configuration", "error", err)
		os.Exit(1)
	}

	summary, err := orchestrator.Run(context.Background(), flags.DryRun)
	if summary != nil {
		cli.PrintRunSummary(summary)
	}
	if err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func backupPath(dir string) string {
	if dir == "" {
		dir = "."
	}
	name := fmt.Sprintf("recon-%s.db", time.Now().UTC().Format("20060102-150405"))
	return filepath.Join(dir, name)
}
