// Package cli holds the flag parsing and console output shared by the
// command line tools.
package cli

import (
	"flag"

	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
)

// ReconcileFlags holds the CLI flags for the reconcile command.
type ReconcileFlags struct {
	ConfigFile           string
	DryRun               bool
	Backup               bool
	AmountToleranceCents int
	DateWindowDays       int
	BatchSize            int
	Verbose              bool

	set map[string]bool
}

// ParseReconcileFlags parses command line flags for the reconcile
// command. Flag defaults mirror the config defaults; a flag overrides
// the config file only when it was given explicitly.
func ParseReconcileFlags() *ReconcileFlags {
	defaults := config.DefaultReconcile()
	flags := &ReconcileFlags{}
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.BoolVar(&flags.DryRun, "dry-run", false, "Plan the run without writing anything")
	flag.BoolVar(&flags.Backup, "backup", false, "Snapshot the database before applying")
	flag.IntVar(&flags.AmountToleranceCents, "amount-tolerance-cents", int(defaults.AmountToleranceCents), "Amount tolerance in cents")
	flag.IntVar(&flags.DateWindowDays, "date-window-days", defaults.DateWindowDays, "Date window in days, symmetric")
	flag.IntVar(&flags.BatchSize, "batch-size", defaults.BatchSize, "Maximum records per side per run")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()

	flags.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { flags.set[f.Name] = true })
	return flags
}

// Apply layers the explicitly-given flags over cfg.
func (f *ReconcileFlags) Apply(cfg config.ReconcileConfig) config.ReconcileConfig {
	if f.set["amount-tolerance-cents"] {
		cfg.AmountToleranceCents = int64(f.AmountToleranceCents)
	}
	if f.set["date-window-days"] {
		cfg.DateWindowDays = f.DateWindowDays
	}
	if f.set["batch-size"] {
		cfg.BatchSize = f.BatchSize
	}
	return cfg
}

// ImportFlags holds the CLI flags for the import command.
type ImportFlags struct {
	ConfigFile string
	File       string
	Kind       string
	BatchID    string
	DryRun     bool
	Verbose    bool
}

// ParseImportFlags parses command line flags for the import command.
func ParseImportFlags() *ImportFlags {
	flags := &ImportFlags{}
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&flags.File, "file", "", "CSV batch file to import")
	flag.StringVar(&flags.Kind, "kind", "receipts", "Batch kind: receipts or transactions")
	flag.StringVar(&flags.BatchID, "batch", "", "Batch identifier for the audit trail (default: file name)")
	flag.BoolVar(&flags.DryRun, "dry-run", false, "Validate the batch without writing anything")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}

// ServeFlags holds the CLI flags for the API server.
type ServeFlags struct {
	ConfigFile string
	Port       int
	Verbose    bool
}

// ParseServeFlags parses command line flags for the API server.
func ParseServeFlags() *ServeFlags {
	flags := &ServeFlags{}
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path")
	flag.IntVar(&flags.Port, "port", 8080, "Port to listen on")
	flag.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	flag.Parse()
	return flags
}
