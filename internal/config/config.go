// Package config provides configuration management for image-optim using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ironsheep/image-optim/internal/imaging"
)

// EnvPrefix is prepended to every environment override, e.g. IMOP_OPTIM_QUALITY.
const EnvPrefix = "IMOP"

// Default configuration values.
const (
	defaultServerPort       = 7001
	defaultServerTimeout    = 60 * time.Second
	defaultRequestTimeout   = 30 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultStopDelay        = 0
	defaultMaxAge           = 30 * 24 * time.Hour
	defaultFetchTimeout     = 10 * time.Second
	defaultFetchRetries     = 2
	defaultFetchRetryDelay  = 200 * time.Millisecond
	defaultFetchMaxBodySize = 50 << 20
	defaultPerfSchedule     = "@every 1m"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Optim       OptimConfig       `mapstructure:"optim"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Performance PerformanceConfig `mapstructure:"performance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// ProcessingLimit caps in-flight image requests; 0 disables the cap.
	ProcessingLimit int `mapstructure:"processing_limit"`
	// StopDelay is how long /ping reports "stopping" before the listener
	// closes, giving load balancers time to drain.
	StopDelay time.Duration `mapstructure:"stop_delay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// OptimConfig holds encoder defaults and response caching policy.
type OptimConfig struct {
	Quality int           `mapstructure:"quality"`
	Speed   int           `mapstructure:"speed"`
	MaxAge  time.Duration `mapstructure:"max_age"`
	// AutoOutputTypes is the ordered preference list for output_type=auto.
	AutoOutputTypes []string `mapstructure:"auto_output_types"`
	DisableDiff     bool     `mapstructure:"disable_diff"`
}

// PipelineConfig holds executor resources.
type PipelineConfig struct {
	Workers            int `mapstructure:"workers"`
	WatermarkCacheSize int `mapstructure:"watermark_cache_size"`
}

// FetchConfig holds remote byte source settings.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxBodySize   int64         `mapstructure:"max_body_size"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// StorageConfig holds the local image directory.
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PerformanceConfig controls the periodic process statistics log.
type PerformanceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Load reads configuration from file, environment variables, and defaults.
// If configPath is empty, it searches for image-optim.yaml in standard locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("image-optim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/image-optim")
		v.AddConfigPath("$HOME/.image-optim")
	}

	// Environment variable settings
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.request_timeout", defaultRequestTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.processing_limit", 0)
	v.SetDefault("server.stop_delay", defaultStopDelay)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Optim defaults
	v.SetDefault("optim.quality", imaging.DefaultQuality)
	v.SetDefault("optim.speed", imaging.DefaultSpeed)
	v.SetDefault("optim.max_age", defaultMaxAge)
	v.SetDefault("optim.auto_output_types", []string{"avif", "webp"})
	v.SetDefault("optim.disable_diff", false)

	// Pipeline defaults
	v.SetDefault("pipeline.workers", runtime.NumCPU())
	v.SetDefault("pipeline.watermark_cache_size", imaging.DefaultCacheSize)

	// Fetch defaults
	v.SetDefault("fetch.timeout", defaultFetchTimeout)
	v.SetDefault("fetch.retry_attempts", defaultFetchRetries)
	v.SetDefault("fetch.retry_delay", defaultFetchRetryDelay)
	v.SetDefault("fetch.max_body_size", defaultFetchMaxBodySize)
	v.SetDefault("fetch.user_agent", "image-optim/1.0")

	// Storage defaults
	v.SetDefault("storage.base_dir", "./data")

	// Performance defaults
	v.SetDefault("performance.enabled", true)
	v.SetDefault("performance.schedule", defaultPerfSchedule)
}

// normalize lowercases enum-like values so env overrides are forgiving.
func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	types := make([]string, 0, len(c.Optim.AutoOutputTypes))
	for _, t := range c.Optim.AutoOutputTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	c.Optim.AutoOutputTypes = types
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Server.ProcessingLimit < 0 {
		return fmt.Errorf("server.processing_limit must not be negative")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Optim validation
	if c.Optim.Quality < 0 || c.Optim.Quality > 100 {
		return fmt.Errorf("optim.quality must be between 0 and 100")
	}
	if c.Optim.Speed < 0 || c.Optim.Speed > 10 {
		return fmt.Errorf("optim.speed must be between 0 and 10")
	}
	if c.Optim.MaxAge < 0 {
		return fmt.Errorf("optim.max_age must not be negative")
	}
	for _, t := range c.Optim.AutoOutputTypes {
		if _, ok := imaging.ParseFormat(t); !ok {
			return fmt.Errorf("optim.auto_output_types: unknown format %q", t)
		}
	}

	// Pipeline validation
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.WatermarkCacheSize < 0 {
		return fmt.Errorf("pipeline.watermark_cache_size must not be negative")
	}

	// Storage validation
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheControl renders the Cache-Control value for an image response.
func (c *OptimConfig) CacheControl(private bool) string {
	visibility := "public"
	if private {
		visibility = "private"
	}
	return fmt.Sprintf("%s, max-age=%d", visibility, int64(c.MaxAge/time.Second))
}
