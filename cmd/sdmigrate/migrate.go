package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sistedes/dspace-migrator/internal/config"
	"github.com/sistedes/dspace-migrator/internal/doccache"
	"github.com/sistedes/dspace-migrator/internal/dspace"
	"github.com/sistedes/dspace-migrator/internal/handle"
	"github.com/sistedes/dspace-migrator/internal/identity"
	"github.com/sistedes/dspace-migrator/internal/journal"
	"github.com/sistedes/dspace-migrator/internal/migrate"
	"github.com/sistedes/dspace-migrator/internal/names"
	"github.com/sistedes/dspace-migrator/internal/source"
	"github.com/spf13/cobra"
)

var (
	migrateStartYear   int
	migrateEndYear     int
	migrateConferences []string
	migrateDryRun      bool
	migrateInteractive bool
	migrateDocs        bool
	migrateReport      string
)

func init() {
	f := rootCmd.Flags()
	f.String("input", "", "Source WordPress base URL")
	f.String("output", "", "Target DSpace server URL")
	f.String("user", "", "Target repository user")
	f.String("password", "", "Target repository password")
	f.Int("waiting-time", 0, "Delay between source fetches in milliseconds")
	f.String("handle-prefix", "", "Handle prefix (default: the repository's own prefix)")
	f.String("handle-server", "", "Handle server URL used for registration")
	f.String("handle-key-file", "", "Handle admin private key (PEM); registration is skipped without it")
	f.String("handle-password", "", "Passphrase of the handle admin key")
	f.String("weak-match", "", "What to do with weak author matches: assign or reject")
	f.String("user-agent", "", "User agent for source requests")

	f.IntVar(&migrateStartYear, "start-year", 0, "First edition year to migrate (0 = no limit)")
	f.IntVar(&migrateEndYear, "end-year", 0, "Last edition year to migrate (0 = no limit)")
	f.StringSliceVar(&migrateConferences, "conferences", nil, "Conference acronyms to migrate (default: all)")
	f.BoolVar(&migrateDryRun, "dry-run", false, "Look everything up and decide authors without writing anything")
	f.BoolVar(&migrateInteractive, "interactive", false, "Ask the operator to disambiguate authors")
	f.BoolVar(&migrateDocs, "migrate-docs", false, "Also migrate seminars and press bulletins")
	f.StringVar(&migrateReport, "report", "", "Write the run report as YAML to this file")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, err := identity.ParseWeakPolicy(cfg.WeakMatchPolicy)
	if err != nil {
		return err
	}
	opts := migrate.Options{
		Prefix:           cfg.HandlePrefix,
		StartYear:        migrateStartYear,
		EndYear:          migrateEndYear,
		Conferences:      migrateConferences,
		DryRun:           migrateDryRun,
		Interactive:      migrateInteractive,
		MigrateDocuments: migrateDocs,
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	logger := slog.Default()

	normalizer, exceptions, err := openNormalizer(cfg)
	if err != nil {
		return err
	}
	defer saveExceptions(cfg, exceptions, logger)

	pacer := source.NewPacer(cfg.WaitingTime(), cfg.UserAgent, nil, logger)
	web, err := source.NewClient(cfg.Input,
		source.WithPacer(pacer),
		source.WithUserAgent(cfg.UserAgent),
		source.WithLogger(logger))
	if err != nil {
		return err
	}
	repo, err := dspace.NewClient(cfg.Output,
		dspace.WithCredentials(cfg.User, cfg.Password),
		dspace.WithLogger(logger))
	if err != nil {
		return err
	}
	registrar, err := newRegistrar(cfg, logger)
	if err != nil {
		return err
	}

	options := []migrate.Option{
		migrate.WithRegistrar(registrar),
		migrate.WithDocuments(doccache.New(cfg.CacheDir, web, logger)),
		migrate.WithWeakPolicy(policy),
		migrate.WithLogger(logger),
	}
	if migrateInteractive {
		options = append(options, migrate.WithDisambiguator(identity.NewConsoleDisambiguator(os.Stdin, os.Stderr)))
	}

	runLog, closeJournal := beginJournal(cfg, opts, logger)
	defer closeJournal()
	if runLog != nil {
		options = append(options, migrate.WithRecorder(runLog))
	}

	o := migrate.New(source.NewTree(web, logger), repo, normalizer, opts, options...)
	report, runErr := o.Run(ctx)

	if runLog != nil {
		status := journal.StatusSucceeded
		if runErr != nil {
			status = journal.StatusFailed
		}
		if err := runLog.Finish(status); err != nil {
			logger.Warn("unable to close journal run", "error", err)
		}
	}
	if err := printReport(report); err != nil {
		logger.Warn("unable to print report", "error", err)
	}
	return runErr
}

// openNormalizer loads the name tables and the exceptions file.
func openNormalizer(cfg *config.Config) (*names.Normalizer, *names.Exceptions, error) {
	given, err := names.LoadTable(cfg.GivenNamesPaths()...)
	if err != nil {
		return nil, nil, fmt.Errorf("loading first names: %w", err)
	}
	surnames, err := names.LoadTable(cfg.SurnamesPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading surnames: %w", err)
	}
	exceptions, err := names.LoadExceptions(cfg.ExceptionsPath())
	if err != nil {
		return nil, nil, err
	}
	return names.NewNormalizer(given, surnames, exceptions), exceptions, nil
}

// saveExceptions rewrites the exceptions file when the run added splits.
func saveExceptions(cfg *config.Config, e *names.Exceptions, logger *slog.Logger) {
	if !e.Dirty() {
		return
	}
	if err := e.Save(cfg.ExceptionsPath()); err != nil {
		logger.Error("unable to save name exceptions", "path", cfg.ExceptionsPath(), "error", err)
		return
	}
	logger.Debug("saved name exceptions", "path", cfg.ExceptionsPath(), "entries", e.Len())
}

// newRegistrar returns the handle client, or a no-op when no admin key is
// configured.
func newRegistrar(cfg *config.Config, logger *slog.Logger) (migrate.Registrar, error) {
	if cfg.HandleKeyFile == "" {
		if !migrateDryRun {
			logger.Warn("no handle key file configured, handles will not be registered")
		}
		return handle.Skip{Logger: logger}, nil
	}
	if cfg.HandlePrefix == "" {
		return nil, fmt.Errorf("%w: handle_prefix (required with handle_key_file)", config.ErrMissing)
	}
	key, err := handle.LoadKey(cfg.HandleKeyFile, cfg.HandlePassword)
	if err != nil {
		return nil, err
	}
	c, err := handle.NewClient(cfg.HandleServer, cfg.HandlePrefix, key, handle.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// beginJournal opens the journal and starts a run in it. The journal is
// an audit aid: when it cannot be opened the migration goes on without it.
func beginJournal(cfg *config.Config, opts migrate.Options, logger *slog.Logger) (*journal.RunLog, func()) {
	path := cfg.Journal()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		logger.Warn("journal disabled", "path", path, "error", err)
		return nil, func() {}
	}
	j, err := journal.Open(path)
	if err != nil {
		logger.Warn("journal disabled", "path", path, "error", err)
		return nil, func() {}
	}
	closeJournal := func() {
		if err := j.Close(); err != nil {
			logger.Warn("closing journal", "error", err)
		}
	}
	encoded, _ := json.Marshal(opts)
	runLog, err := j.Begin(opts.DryRun, string(encoded))
	if err != nil {
		logger.Warn("journal disabled", "path", path, "error", err)
		return nil, closeJournal
	}
	logger.Debug("journal run started", "path", path, "run", runLog.ID())
	return runLog, closeJournal
}

func printReport(report *migrate.Report) error {
	if report == nil {
		return nil
	}
	if migrateReport != "" {
		if err := writeYAML(migrateReport, report); err != nil {
			return err
		}
	}
	if humanOutput {
		return report.WriteText(os.Stdout)
	}
	return outputJSON(report)
}
