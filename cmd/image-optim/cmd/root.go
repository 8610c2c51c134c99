// Package cmd implements the CLI commands for image-optim.
package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/image-optim/internal/config"
	"github.com/ironsheep/image-optim/internal/observability"
	"github.com/ironsheep/image-optim/internal/version"
)

var (
	// cfgFile holds the config file path from CLI flag.
	cfgFile string

	// cfg and logger are populated by the root PersistentPreRunE.
	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "image-optim",
	Short:   "On-demand image optimisation service",
	Version: version.Short(),
	Long: `image-optim loads images from local storage, remote URLs or inline
base64, applies watermark, crop, resize and grayscale operations, and
re-encodes them as jpeg, png, webp, avif or gif.

It runs as an HTTP service (serve), as an MCP tool server over stdio (mcp),
or once against a JSON operation list (run).`,
	SilenceUsage: true,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initConfig()
	}

	// Global flags. They are not bound to viper: an explicitly set flag
	// overrides env and file values, an unset one leaves them alone.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./image-optim.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initConfig loads configuration and installs the default logger.
//
// Priority order (highest to lowest):
//  1. CLI flags, only if explicitly provided
//  2. Environment variables (IMOP_LOGGING_LEVEL, IMOP_SERVER_PORT, ...)
//  3. Config file values
//  4. Built-in defaults
func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := rootCmd.PersistentFlags()
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		loaded.Logging.Level = strings.ToLower(level)
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		loaded.Logging.Format = strings.ToLower(format)
	}
	if loaded.Logging.Level == "warning" {
		loaded.Logging.Level = "warn"
	}

	cfg = loaded
	logger = observability.NewLogger(cfg.Logging).With(slog.String("app", version.ApplicationName))
	slog.SetDefault(logger)
	return nil
}
