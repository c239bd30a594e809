package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sistedes/dspace-migrator/internal/config"
	"github.com/spf13/cobra"
)

// settingFlags maps flags to the config keys they override.
var settingFlags = map[string]string{
	"input":           "input",
	"output":          "output",
	"user":            "user",
	"password":        "password",
	"handle-prefix":   "handle_prefix",
	"handle-server":   "handle_server",
	"handle-key-file": "handle_key_file",
	"handle-password": "handle_password",
	"waiting-time":    "waiting_time_ms",
	"cache-dir":       "cache_dir",
	"data-dir":        "data_dir",
	"journal":         "journal_path",
	"weak-match":      "weak_match_policy",
	"user-agent":      "user_agent",
}

func init() {
	// shared by every command
	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", "", "Directory with the name tables and the exceptions file")
	pf.String("cache-dir", "", "Directory for downloaded documents")
	pf.String("journal", "", "Run journal database (default <cache-dir>/journal.db)")
}

// loadDotEnv reads .env from the working directory. Variables already set
// in the environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// loadSettings resolves the configuration of cmd: defaults, config file,
// environment, then the flags given on the command line.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	for name, key := range settingFlags {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := cfg.Set(key, f.Value.String()); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// configureLogging installs the default logger: text on stderr, level from
// LOG_LEVEL unless verbose forces debug.
func configureLogging(verbose bool) {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}
