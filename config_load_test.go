package geocache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "geocache.yaml", `
max_bytes: 1048576
default_ttl: 90s
compress_threshold: 4096
codec: brotli
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxBytes != 1<<20 {
		t.Fatalf("max_bytes: got %d", cfg.MaxBytes)
	}
	if cfg.DefaultTTL.Std() != 90*time.Second {
		t.Fatalf("default_ttl: got %v", cfg.DefaultTTL.Std())
	}
	if cfg.CompressThreshold != 4096 {
		t.Fatalf("compress_threshold: got %d", cfg.CompressThreshold)
	}
	if cfg.Codec != "brotli" {
		t.Fatalf("codec: got %q", cfg.Codec)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "geocache.json",
		`{"max_bytes": 2048, "default_ttl": "2m", "codec": "none"}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MaxBytes != 2048 {
		t.Fatalf("max_bytes: got %d", cfg.MaxBytes)
	}
	if cfg.DefaultTTL.Std() != 2*time.Minute {
		t.Fatalf("default_ttl: got %v", cfg.DefaultTTL.Std())
	}
}

func TestLoadConfigRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "geocache.toml", `max_bytes = 1`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
}

func TestLoadConfigRejectsBadCodec(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "geocache.yaml", `codec: zstd`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for unknown codec")
	}
}
