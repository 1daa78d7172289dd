package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/brightbooks/recon-engine/internal/application/importer"
	"github.com/brightbooks/recon-engine/internal/cli"
	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
	"github.com/brightbooks/recon-engine/internal/infrastructure/logging"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

func main() {
	flags := cli.ParseImportFlags()

	cfg := config.LoadOrEnv(flags.ConfigFile)
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "import")

	if flags.File == "" {
		logger.Error("no input file, use -file")
		os.Exit(2)
	}
	kind, err := importer.ParseKind(flags.Kind)
	if err != nil {
		logger.Error("bad batch kind", "error", err)
		os.Exit(2)
	}
	batchID := flags.BatchID
	if batchID == "" {
		batchID = filepath.Base(flags.File)
	}

	cli.PrintHeader("import", flags.DryRun)

	f, err := os.Open(flags.File)
	if err != nil {
		logger.Error("failed to open batch file", "error", err)
		os.Exit(1)
	}
	rows, err := importer.ReadRows(f)
	_ = f.Close()
	if err != nil {
		logger.Error("failed to parse batch file", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	imp := importer.New(store, logger)
	report, err := imp.ImportBatch(context.Background(), kind, rows, importer.Options{
		BatchID: batchID,
		DryRun:  flags.DryRun,
	})
	if err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}

	cli.PrintImportReport(report)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
