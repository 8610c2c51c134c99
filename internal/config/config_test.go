package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Server:   ServerConfig{Port: 7001, RequestTimeout: 30 * time.Second},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Optim:    OptimConfig{Quality: 80, Speed: 3, MaxAge: time.Hour, AutoOutputTypes: []string{"webp"}},
		Pipeline: PipelineConfig{Workers: 2, WatermarkCacheSize: 10},
		Storage:  StorageConfig{BaseDir: "./data"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Load without config file should use defaults
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 0, cfg.Server.ProcessingLimit)

	assert.Equal(t, 80, cfg.Optim.Quality)
	assert.Equal(t, 3, cfg.Optim.Speed)
	assert.Equal(t, 30*24*time.Hour, cfg.Optim.MaxAge)
	assert.Equal(t, []string{"avif", "webp"}, cfg.Optim.AutoOutputTypes)
	assert.False(t, cfg.Optim.DisableDiff)

	assert.Equal(t, 10, cfg.Pipeline.WatermarkCacheSize)
	assert.GreaterOrEqual(t, cfg.Pipeline.Workers, 1)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Performance.Enabled)
	assert.Equal(t, "@every 1m", cfg.Performance.Schedule)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image-optim.yaml")
	content := `
server:
  port: 9000
  processing_limit: 4
optim:
  quality: 70
  max_age: 1h
  auto_output_types: [WEBP, jpeg]
  disable_diff: true
logging:
  level: DEBUG
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Server.ProcessingLimit)
	assert.Equal(t, 70, cfg.Optim.Quality)
	assert.Equal(t, time.Hour, cfg.Optim.MaxAge)
	assert.Equal(t, []string{"webp", "jpeg"}, cfg.Optim.AutoOutputTypes)
	assert.True(t, cfg.Optim.DisableDiff)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("IMOP_OPTIM_QUALITY", "55")
	t.Setenv("IMOP_SERVER_PORT", "8088")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 55, cfg.Optim.Quality)
	assert.Equal(t, 8088, cfg.Server.Port)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, "server.request_timeout"},
		{"processing limit", func(c *Config) { c.Server.ProcessingLimit = -1 }, "server.processing_limit"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"quality", func(c *Config) { c.Optim.Quality = 101 }, "optim.quality"},
		{"speed", func(c *Config) { c.Optim.Speed = 11 }, "optim.speed"},
		{"auto types", func(c *Config) { c.Optim.AutoOutputTypes = []string{"heic"} }, "optim.auto_output_types"},
		{"workers", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline.workers"},
		{"cache size", func(c *Config) { c.Pipeline.WatermarkCacheSize = -1 }, "pipeline.watermark_cache_size"},
		{"base dir", func(c *Config) { c.Storage.BaseDir = "" }, "storage.base_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 7001}
	assert.Equal(t, "127.0.0.1:7001", s.Address())
}

func TestCacheControl(t *testing.T) {
	o := OptimConfig{MaxAge: 30 * 24 * time.Hour}
	assert.Equal(t, "public, max-age=2592000", o.CacheControl(false))
	assert.Equal(t, "private, max-age=2592000", o.CacheControl(true))
}
