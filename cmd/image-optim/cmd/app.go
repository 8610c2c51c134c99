package cmd

import (
	"log/slog"

	"github.com/ironsheep/image-optim/internal/config"
	"github.com/ironsheep/image-optim/internal/observability"
	"github.com/ironsheep/image-optim/internal/pipeline"
	"github.com/ironsheep/image-optim/internal/source"
	"github.com/ironsheep/image-optim/internal/version"
)

// newRunner builds the fetcher, watermark cache, executor and worker pool
// shared by every command.
func newRunner(cfg *config.Config, logger *slog.Logger) *pipeline.Runner {
	fetchCfg := source.DefaultHTTPConfig()
	fetchCfg.Timeout = cfg.Fetch.Timeout
	fetchCfg.RetryAttempts = cfg.Fetch.RetryAttempts
	fetchCfg.RetryDelay = cfg.Fetch.RetryDelay
	fetchCfg.MaxBodySize = cfg.Fetch.MaxBodySize
	fetchCfg.UserAgent = cfg.Fetch.UserAgent
	if fetchCfg.UserAgent == "" {
		fetchCfg.UserAgent = version.UserAgent()
	}
	fetchCfg.Logger = observability.WithComponent(logger, "fetch")

	watermarks := pipeline.NewWatermarkCache(cfg.Pipeline.WatermarkCacheSize,
		observability.WithComponent(logger, "watermarks"))

	exec := pipeline.New(pipeline.Config{
		Quality:     cfg.Optim.Quality,
		Speed:       cfg.Optim.Speed,
		DisableDiff: cfg.Optim.DisableDiff,
	}, source.NewHTTPSource(fetchCfg), watermarks, observability.WithComponent(logger, "pipeline"))

	return pipeline.NewRunner(exec, cfg.Pipeline.Workers, cfg.Server.RequestTimeout)
}
