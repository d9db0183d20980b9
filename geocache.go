// Package geocache is the data-acquisition and caching core behind
// interactive geospatial surfaces: a bounded compressed in-memory cache, a
// get-or-fetch loader with single-flight coalescing, and a chunked feature
// streamer with consumer backpressure. Map, grid and chart components are
// external collaborators that only use this package's entry points.
package geocache

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/mapflow/geocache/internal/cache"
	"github.com/mapflow/geocache/internal/loader"
	"github.com/mapflow/geocache/internal/stream"
)

// FetchFunc performs the underlying fetch when neither the cache nor an
// in-flight request can satisfy a Load.
type FetchFunc = loader.FetchFunc

// Feature is one decoded GeoJSON feature delivered by Stream.
type Feature = stream.Feature

// Stats is a read-only snapshot of the cache counters.
type Stats = cache.Stats

var (
	// ErrStreamCancelled classifies a cooperatively cancelled stream.
	ErrStreamCancelled = stream.ErrCancelled

	// ErrStreamDecode classifies a payload that could not be parsed.
	ErrStreamDecode = stream.ErrDecode
)

// Client is the library boundary. Construct it once with New; the
// configuration is immutable for its lifetime.
type Client struct {
	cfg    Config
	store  cache.Cache
	loader *loader.Loader
	logger *zap.Logger
}

// New creates a Client from cfg. A nil logger falls back to a no-op logger.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	codec, err := cache.ParseCodec(cfg.Codec)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store := cache.NewLoggingCache(cache.NewMemoryStore(cache.Config{
		MaxBytes:          cfg.MaxBytes,
		CompressThreshold: cfg.CompressThreshold,
		Codec:             codec,
	}, logger))

	return &Client{
		cfg:    cfg,
		store:  store,
		loader: loader.New(store, logger),
		logger: logger,
	}, nil
}

// Load returns the payload for key with the configured default TTL. See
// LoadTTL.
func (c *Client) Load(ctx context.Context, key string, fetch FetchFunc) ([]byte, error) {
	return c.LoadTTL(ctx, key, c.cfg.DefaultTTL.Std(), fetch)
}

// LoadTTL returns the payload for key: from the cache on a hit, by
// attaching to an in-flight fetch for the same key when one exists, or by
// invoking fetch at most once otherwise. Fetch errors are returned verbatim
// and never cached.
func (c *Client) LoadTTL(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	return c.loader.Load(ctx, key, ttl, fetch)
}

// Stream incrementally decodes GeoJSON features from r, delivering them to
// onChunk in groups of chunkSize. It returns the number of items delivered.
// Streamed data does not pass through the cache. Cancellation via ctx is
// observed between chunks and reported as ErrStreamCancelled.
func (c *Client) Stream(ctx context.Context, r io.Reader, chunkSize int, onChunk func([]Feature) error) (int, error) {
	return stream.Stream(ctx, r, chunkSize, onChunk)
}

// Stats returns a read-only snapshot of cache counters for dashboards.
func (c *Client) Stats() Stats {
	return c.store.Stats()
}
