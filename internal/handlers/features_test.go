package handlers

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap/zaptest"

	"github.com/mapflow/geocache"
	"github.com/mapflow/geocache/internal/fetch"
)

func upstreamCollection(n int) string {
	var b strings.Builder
	b.WriteString(`{"type":"FeatureCollection","features":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"type":"Feature","id":%d,"geometry":{"type":"Point","coordinates":[0,0]},"properties":{"n":%d}}`, i, i)
	}
	b.WriteString(`]}`)
	return b.String()
}

func newTestHarness(t *testing.T, upstream http.HandlerFunc) (*httptest.Server, *geocache.Client) {
	t.Helper()

	upstreamSrv := httptest.NewServer(upstream)
	t.Cleanup(upstreamSrv.Close)

	client, err := geocache.New(geocache.Config{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("geocache.New: %v", err)
	}
	fetcher := fetch.NewClient(fetch.Config{}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = fetcher.Close() })

	features := NewFeaturesHandler(client, fetcher, upstreamSrv.URL, 10)
	stats := NewStatsHandler(client)

	r := chi.NewRouter()
	r.Get("/v1/collections/{id}/items", features.GetItems)
	r.Get("/v1/stats", stats.GetStats)

	harness := httptest.NewServer(r)
	t.Cleanup(harness.Close)

	return harness, client
}

func TestGetItemsStreamsNDJSON(t *testing.T) {
	t.Parallel()

	var upstreamCalls atomic.Int64
	harness, _ := newTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		if !strings.HasPrefix(r.URL.Path, "/collections/roads/items") {
			t.Errorf("unexpected upstream path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("f") != "json" {
			t.Errorf("expected f=json forced on the upstream query")
		}
		_, _ = w.Write([]byte(upstreamCollection(25)))
	})

	resp, err := http.Get(harness.URL + "/v1/collections/roads/items?limit=100")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("unexpected content type: %s", ct)
	}

	lines := 0
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var f geocache.Feature
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			t.Fatalf("line %d is not a feature: %v", lines, err)
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if lines != 25 {
		t.Fatalf("expected 25 NDJSON lines, got %d", lines)
	}

	// Second request for the same collection is a cache hit.
	resp2, err := http.Get(harness.URL + "/v1/collections/roads/items?limit=100")
	if err != nil {
		t.Fatalf("second GET: %v", err)
	}
	resp2.Body.Close()
	if upstreamCalls.Load() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", upstreamCalls.Load())
	}
}

func TestGetItemsUpstreamFailure(t *testing.T) {
	t.Parallel()

	harness, _ := newTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	resp, err := http.Get(harness.URL + "/v1/collections/missing/items")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 for upstream failure, got %d", resp.StatusCode)
	}
}

func TestGetStatsSnapshot(t *testing.T) {
	t.Parallel()

	harness, _ := newTestHarness(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(upstreamCollection(3)))
	})

	// Warm the cache, then read stats.
	resp, err := http.Get(harness.URL + "/v1/collections/rivers/items")
	if err != nil {
		t.Fatalf("warm GET: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(harness.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("stats GET: %v", err)
	}
	defer resp.Body.Close()

	var stats geocache.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected 1 cache entry after warm request, got %+v", stats)
	}
	if stats.Misses == 0 {
		t.Fatalf("warm request should have recorded a miss, got %+v", stats)
	}
}
