package main

import (
	"log/slog"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/kleinpanic/ICS-Satellite/internal/config"
	"github.com/kleinpanic/ICS-Satellite/internal/store"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	configPath     string
	dbPathOverride string
)

var rootCmd = &cobra.Command{
	Use:     "satfeed",
	Short:   "Manage the durable store of requested satellite pass feeds",
	Long:    "satfeed maintains the deduplicated request store behind the published pass feeds: live intake, bulk seeding, legacy imports, and the canonicalization and dedup maintenance passes.",
	Version: Version,

	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default config/satfeed.yaml or SATFEED_CONFIG_PATH)")
	rootCmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"Path to the request store (overrides config)")

	rootCmd.AddCommand(persistCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(canonicalizeCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(backupCmd)
}

// loadConfig loads configuration and initializes the process logger. Every
// run is tagged with a ULID so log lines from one invocation correlate.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("run", ulid.Make().String()))

	return cfg, nil
}

// resolveDBPath applies the --db override to the configured store path.
func resolveDBPath(cfg *config.Config) string {
	if dbPathOverride != "" {
		return dbPathOverride
	}
	return cfg.RequestDBPath
}

// openStore opens the request store at the resolved path. The caller owns
// the handle and must Close it on every exit path.
func openStore(cfg *config.Config) (*store.RequestStore, error) {
	path := resolveDBPath(cfg)
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Info("store opened", "path", path)
	return st, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
