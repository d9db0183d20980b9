package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mapflow/geocache"
	"github.com/mapflow/geocache/internal/fetch"
	"github.com/mapflow/geocache/internal/handlers"
	"github.com/mapflow/geocache/internal/httpserver"
	"github.com/mapflow/geocache/internal/metrics"
	"github.com/mapflow/geocache/pkg/logging"
)

type serverConfig struct {
	Port        string
	UpstreamURL string
	ConfigPath  string // optional YAML/JSON file for the cache config
	ChunkSize   int
}

func loadServerConfig() serverConfig {
	chunkSize := 256
	if v := os.Getenv("GEOCACHE_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			chunkSize = n
		}
	}
	return serverConfig{
		Port:        getenv("GEOCACHE_PORT", "8080"),
		UpstreamURL: os.Getenv("GEOCACHE_UPSTREAM_URL"),
		ConfigPath:  os.Getenv("GEOCACHE_CONFIG"),
		ChunkSize:   chunkSize,
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("geocached exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	srvCfg := loadServerConfig()
	if srvCfg.UpstreamURL == "" {
		return fmt.Errorf("GEOCACHE_UPSTREAM_URL is required")
	}

	cacheCfg := geocache.Config{}
	if srvCfg.ConfigPath != "" {
		loaded, err := geocache.LoadConfig(srvCfg.ConfigPath)
		if err != nil {
			return err
		}
		cacheCfg = *loaded
	}
	cacheCfg = cacheCfg.WithDefaults()

	logger.Info("loaded config",
		zap.String("port", srvCfg.Port),
		zap.String("upstream_url", srvCfg.UpstreamURL),
		zap.Int("chunk_size", srvCfg.ChunkSize),
		zap.Int64("cache_max_bytes", cacheCfg.MaxBytes),
		zap.Duration("cache_default_ttl", cacheCfg.DefaultTTL.Std()),
		zap.String("cache_codec", cacheCfg.Codec),
	)

	// ----- Caching core -----
	client, err := geocache.New(cacheCfg, logger)
	if err != nil {
		return err
	}

	// ----- Upstream fetcher -----
	fetcher := fetch.NewClient(fetch.Config{}, logger)
	defer fetcher.Close()

	// ----- Handlers -----
	featuresHandler := handlers.NewFeaturesHandler(client, fetcher, srvCfg.UpstreamURL, srvCfg.ChunkSize)
	statsHandler := handlers.NewStatsHandler(client)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, featuresHandler, statsHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + srvCfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting geocached",
		zap.String("addr", srv.Addr),
		zap.String("upstream_url", srvCfg.UpstreamURL),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
