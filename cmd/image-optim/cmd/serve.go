package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/image-optim/internal/config"
	internalhttp "github.com/ironsheep/image-optim/internal/http"
	"github.com/ironsheep/image-optim/internal/http/handlers"
	"github.com/ironsheep/image-optim/internal/observability"
	"github.com/ironsheep/image-optim/internal/source"
	"github.com/ironsheep/image-optim/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the image-optim HTTP server",
	Long: `Start the image-optim HTTP server.

The server provides:
- GET  /images/optim           optimise a file from the storage directory
- GET  /optim-images/preview   optimise a remote or inline image
- POST /optim-images           optimise base64 data, JSON response
- POST /pipelines              run an explicit operation list
- GET  /ping                   liveness, 503 while draining
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 7001, "Port to listen on")
	serveCmd.Flags().String("base-dir", "./data", "Directory served by /images/optim")
	serveCmd.Flags().Int("workers", 0, "Image worker pool size (default: number of CPUs)")
}

// applyServeFlags copies explicitly set serve flags over the loaded config.
func applyServeFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("base-dir") {
		cfg.Storage.BaseDir, _ = flags.GetString("base-dir")
	}
	if flags.Changed("workers") {
		if n, _ := flags.GetInt("workers"); n > 0 {
			cfg.Pipeline.Workers = n
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	applyServeFlags(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	runner := newRunner(cfg, logger)
	defer runner.Stop()

	srv := internalhttp.NewServer(cfg.Server, logger, version.Version)

	pingHandler := handlers.NewPingHandler(srv.Stopping)
	pingHandler.RegisterChiRoutes(srv.Router())

	imageHandler := handlers.NewImageHandler(runner, source.NewStorageSource(cfg.Storage.BaseDir), cfg.Optim,
		observability.WithComponent(logger, "images"))
	imageHandler.RegisterChiRoutes(srv.Router())
	imageHandler.Register(srv.API())

	if cfg.Performance.Enabled {
		monitor, err := observability.NewPerformanceMonitor(logger, runner.Processing)
		if err != nil {
			logger.Warn("performance monitor unavailable", slog.String("error", err.Error()))
		} else if err := monitor.Start(cfg.Performance.Schedule); err != nil {
			return fmt.Errorf("starting performance monitor: %w", err)
		} else {
			defer monitor.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("image-optim ready",
		slog.String("version", version.Version),
		slog.String("address", cfg.Server.Address()),
		slog.String("base_dir", cfg.Storage.BaseDir),
		slog.Int("workers", cfg.Pipeline.Workers),
	)

	return srv.ListenAndServe(ctx)
}
