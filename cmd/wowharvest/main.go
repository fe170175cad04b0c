package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IshaanNene/WoWHarvest/internal/config"
	"github.com/IshaanNene/WoWHarvest/internal/observability"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wowharvest",
		Short: "WoWHarvest: World of Warcraft game data and forum harvester",
		Long: `WoWHarvest downloads spell, talent and talent tree documents from the
Blizzard Game Data API, flattens them into CSV tables and merges those into
one cleaned dataset. It also collects player comments from forum topics.

Typical use:
  wowharvest run                 fetch, process and clean in one go
  wowharvest fetch --only spells re-download a single step
  wowharvest show data/cleaned_dataset.csv`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(cleanCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(tagClassesCmd())
	rootCmd.AddCommand(forumsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// env is what every command that touches data needs.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// setup loads and validates the config, builds the logger and starts the
// metrics endpoint when enabled. The returned context is cancelled on
// SIGINT or SIGTERM.
func setup(parent context.Context) (context.Context, context.CancelFunc, *env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(&cfg.Logging)
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		metrics.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path)
	}
	return ctx, cancel, &env{cfg: cfg, logger: logger, metrics: metrics}, nil
}

// setupLogger creates a structured logger.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("WoWHarvest %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cfg.API.ClientSecret != "" {
				cfg.API.ClientSecret = "********"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			if err := enc.Close(); err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nconfig is not valid: %v\n", err)
			}
			return nil
		},
	}
}
