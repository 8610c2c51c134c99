package source

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

var (
	ErrMaxRetries       = errors.New("max retries exceeded")
	ErrResponseTooLarge = errors.New("response body exceeds maximum size limit")
)

const (
	DefaultTimeout           = 10 * time.Second
	DefaultRetryAttempts     = 2
	DefaultRetryDelay        = 200 * time.Millisecond
	DefaultBackoffMultiplier = 2.0
	DefaultMaxBodySize       = 50 << 20
	DefaultUserAgent         = "image-optim/1.0"

	acceptEncoding = "br, gzip"
)

// StatusError is returned for a non-2xx response that is not retried.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int

	// RetryDelay is the wait before the first retry; later waits grow by
	// BackoffMultiplier.
	RetryDelay        time.Duration
	BackoffMultiplier float64

	// MaxBodySize caps the decoded body. 0 means no limit.
	MaxBodySize int64

	UserAgent string
	Logger    *slog.Logger

	// BaseClient overrides the underlying client, mostly for tests.
	BaseClient *http.Client
}

// DefaultHTTPConfig returns the defaults used when no configuration is given.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:           DefaultTimeout,
		RetryAttempts:     DefaultRetryAttempts,
		RetryDelay:        DefaultRetryDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		MaxBodySize:       DefaultMaxBodySize,
		UserAgent:         DefaultUserAgent,
	}
}

// HTTPSource fetches locators over HTTP(S) with retries on transport
// errors, 429 and 5xx responses, and transparent gzip/brotli decoding.
type HTTPSource struct {
	config HTTPConfig
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSource creates an HTTPSource.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	client := cfg.BaseClient
	if client == nil {
		// Decompression is handled here so brotli gets the same treatment
		// as gzip.
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &http.Transport{DisableCompression: true, Proxy: http.ProxyFromEnvironment},
		}
	}
	return &HTTPSource{config: cfg, client: client, logger: cfg.Logger}
}

// Read performs a GET on locator and returns the decoded body.
func (s *HTTPSource) Read(ctx context.Context, locator string) (*Blob, error) {
	var lastErr error
	delay := s.config.RetryDelay

	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			s.logger.Debug("retrying fetch",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("url", locator),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * s.config.BackoffMultiplier)
		}

		blob, retry, err := s.fetch(ctx, locator)
		if err == nil {
			return blob, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("fetch failed",
			slog.String("url", locator),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	return nil, fmt.Errorf("%w: %v", ErrMaxRetries, lastErr)
}

// fetch performs one attempt and reports whether a failure is retryable.
func (s *HTTPSource) fetch(ctx context.Context, locator string) (*Blob, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set("Accept", "image/*")
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, !errors.Is(err, context.Canceled), err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, &StatusError{URL: locator, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &StatusError{URL: locator, StatusCode: resp.StatusCode}
	}

	body, err := decompress(resp)
	if err != nil {
		return nil, false, fmt.Errorf("decoding body: %w", err)
	}
	data, err := readLimited(body, s.config.MaxBodySize)
	if err != nil {
		return nil, false, err
	}

	s.logger.Debug("fetch completed",
		slog.String("url", locator),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)),
	)
	return &Blob{Data: data, ContentType: resp.Header.Get("Content-Type")}, false, nil
}

func decompress(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return resp.Body, nil
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}
