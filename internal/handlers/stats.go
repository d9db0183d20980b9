package handlers

import (
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mapflow/geocache"
	"github.com/mapflow/geocache/pkg/logging"
)

// StatsHandler exposes the cache statistics snapshot for dashboards.
type StatsHandler struct {
	Client *geocache.Client
}

func NewStatsHandler(client *geocache.Client) *StatsHandler {
	return &StatsHandler{Client: client}
}

// GetStats handles GET /v1/stats. Read-only, no side effects.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.Client.Stats()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		logging.L(r.Context()).Warn("encode stats failed", zap.Error(err))
	}
}
