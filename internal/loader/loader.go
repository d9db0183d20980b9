package loader

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mapflow/geocache/internal/cache"
	"github.com/mapflow/geocache/internal/metrics"
	"github.com/mapflow/geocache/pkg/logging"
)

// FetchFunc performs the underlying fetch for a key when neither the cache
// nor an in-flight fetch can satisfy it. It is supplied by the caller; the
// loader never retries it.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Loader implements get-or-fetch with single-flight coalescing: concurrent
// Load calls for the same key share one underlying fetch, and a successful
// result is inserted into the cache before it is fanned out to the waiters.
type Loader struct {
	cache  cache.Cache
	group  singleflight.Group
	logger *zap.Logger
}

// New creates a Loader backed by the given cache. A nil logger falls back
// to a no-op logger.
func New(c cache.Cache, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		cache:  c,
		logger: logger.Named("loader"),
	}
}

// Load returns the payload for key, from the cache when possible, otherwise
// from at most one concurrent invocation of fetch per key. A fetch error is
// delivered verbatim to every waiter and nothing is cached, so the key is
// immediately eligible for a fresh attempt.
//
// If ctx is done while waiting on a fetch started by another caller, Load
// returns ctx.Err() and stops waiting; the fetch itself continues for the
// remaining waiters.
func (l *Loader) Load(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	payload, hit, err := l.cache.Get(ctx, key)
	if err != nil {
		// The cache is best-effort: log and fall through to a fetch.
		logging.L(ctx).Warn("cache get failed, falling through to fetch",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	if hit {
		return payload, nil
	}

	// The executing fetch runs detached from this caller's cancellation so
	// that one caller abandoning its wait cannot fail the fetch for others.
	fetchCtx := context.WithoutCancel(ctx)

	ch := l.group.DoChan(key, func() (any, error) {
		return l.fetchAndStore(fetchCtx, key, ttl, fetch)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			metrics.CoalescedWaitersTotal.Inc()
		}
		return res.Val.([]byte), nil
	}
}

func (l *Loader) fetchAndStore(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	metrics.InFlightFetches.Inc()
	defer metrics.InFlightFetches.Dec()

	start := time.Now()
	payload, err := fetch(ctx)
	elapsed := time.Since(start)
	metrics.FetchDurationSeconds.Observe(elapsed.Seconds())

	if err != nil {
		metrics.FetchesTotal.WithLabelValues("error").Inc()
		l.logger.Warn("fetch failed",
			zap.String("key", key),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.FetchesTotal.WithLabelValues("ok").Inc()

	if perr := l.cache.Put(ctx, key, payload, ttl); perr != nil {
		// A put failure degrades to an uncached success.
		l.logger.Warn("cache put failed after fetch",
			zap.String("key", key),
			zap.Error(perr),
		)
	}

	l.logger.Debug("fetch completed",
		zap.String("key", key),
		zap.Int("bytes", len(payload)),
		zap.Duration("duration", elapsed),
	)
	return payload, nil
}
