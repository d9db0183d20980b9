package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mapflow/geocache"
	"github.com/mapflow/geocache/internal/fetch"
	"github.com/mapflow/geocache/internal/signature"
	"github.com/mapflow/geocache/pkg/logging"
)

// FeaturesHandler proxies OGC API feature collections through the caching
// core and re-streams them to the response in bounded chunks.
type FeaturesHandler struct {
	Client      *geocache.Client
	Fetcher     *fetch.Client
	UpstreamURL string // base of the upstream OGC API, no trailing slash
	ChunkSize   int
}

func NewFeaturesHandler(client *geocache.Client, fetcher *fetch.Client, upstreamURL string, chunkSize int) *FeaturesHandler {
	return &FeaturesHandler{
		Client:      client,
		Fetcher:     fetcher,
		UpstreamURL: strings.TrimRight(upstreamURL, "/"),
		ChunkSize:   chunkSize,
	}
}

// GetItems handles GET /v1/collections/{id}/items. The upstream payload is
// loaded through the coalescing cache, then streamed back as NDJSON so the
// response never materializes the decoded collection.
func (h *FeaturesHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	collectionID := chi.URLParam(r, "id")
	if collectionID == "" {
		http.Error(w, "missing collection id", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	query.Set("f", "json")
	upstream := fmt.Sprintf("%s/collections/%s/items?%s",
		h.UpstreamURL, url.PathEscape(collectionID), query.Encode())

	key, err := signature.Build(upstream, nil)
	if err != nil {
		logger.Warn("bad upstream url", zap.Error(err))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	fetchFn := h.Fetcher.FetchFunc(upstream, map[string]string{
		"Accept": "application/geo+json",
	})
	payload, err := h.Client.Load(ctx, key.String(), fetchFn)
	if err != nil {
		logger.Error("upstream load failed",
			zap.String("collection", collectionID),
			zap.Error(err),
		)
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	emitted, err := h.Client.Stream(ctx, bytes.NewReader(payload), h.ChunkSize, func(features []geocache.Feature) error {
		for i := range features {
			if err := enc.Encode(&features[i]); err != nil {
				return err
			}
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	switch {
	case errors.Is(err, geocache.ErrStreamCancelled):
		logger.Info("feature stream cancelled by client",
			zap.String("collection", collectionID),
			zap.Int("items", emitted),
		)
		return
	case err != nil:
		// Headers are already out; all we can do is stop and log.
		logger.Error("feature stream failed",
			zap.String("collection", collectionID),
			zap.Int("items", emitted),
			zap.Error(err),
		)
		return
	}

	logger.Info("features served",
		zap.String("collection", collectionID),
		zap.Int("items", emitted),
		zap.Int("payload_bytes", len(payload)),
		zap.Duration("total_latency", time.Since(start)),
	)
}
