package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mapflow/geocache/internal/loader"
)

// Config holds the HTTP fetcher settings.
type Config struct {
	Timeout         time.Duration // per-request timeout (default: 30s)
	MaxRetries      int           // retry attempts beyond the first try (default: 2)
	BaseBackoff     time.Duration // initial backoff (default: 100ms)
	MaxPayloadBytes int64         // response size guard (default: 64MB)
	UserAgent       string

	// Optional connection pool settings
	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// WithDefaults returns a copy of Config with sane defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = 64 << 20
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "geocache/1.0"
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

// Client fetches byte payloads over HTTP with bounded retries. It is the
// retry layer the loader itself deliberately does not have: the loader
// delivers fetch errors verbatim, this client decides what is worth a
// second attempt before the loader ever sees a failure.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a fetcher with the given configuration. A nil logger
// falls back to a no-op logger.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.WithDefaults()

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("fetch"),
	}
}

// Get fetches url and returns the response body. Non-2xx terminal responses
// and bodies over the configured size guard are errors.
func (c *Client) Get(parentCtx context.Context, url string, headers map[string]string) ([]byte, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.Timeout)
	defer cancel()

	doOnce := func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.cfg.UserAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return c.httpClient.Do(req)
	}

	resp, err := c.doWithRetry(ctx, doOnce)
	if err != nil {
		c.logger.Error("fetch failed",
			zap.String("url", url),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("fetch upstream error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("fetch: upstream %d for %s", resp.StatusCode, url)
	}

	// Guard: read one byte past the limit to detect oversized bodies.
	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(payload)) > c.cfg.MaxPayloadBytes {
		return nil, fmt.Errorf("fetch: payload exceeds %d bytes", c.cfg.MaxPayloadBytes)
	}

	c.logger.Debug("fetch completed",
		zap.String("url", url),
		zap.Int("bytes", len(payload)),
		zap.Duration("duration", time.Since(start)),
	)
	return payload, nil
}

// FetchFunc adapts Get into the loader's FetchFunc for a fixed URL.
func (c *Client) FetchFunc(url string, headers map[string]string) loader.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return c.Get(ctx, url, headers)
	}
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// defaultTransport creates an HTTP transport with connection pooling and
// reasonable timeouts.
func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
