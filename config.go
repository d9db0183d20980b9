package geocache

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mapflow/geocache/internal/cache"
)

// Duration wraps time.Duration so config files can use "5m" style values.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML accepts either a duration string ("90s", "5m") or an
// integer nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var ns int64
	if err := value.Decode(&ns); err != nil {
		return fmt.Errorf("invalid duration value on line %d", value.Line)
	}
	*d = Duration(ns)
	return nil
}

// UnmarshalJSON mirrors UnmarshalYAML for JSON configs.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 1 && b[0] == '"' {
		raw := string(b[1 : len(b)-1])
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if _, err := fmt.Sscan(string(b), &ns); err != nil {
		return fmt.Errorf("invalid duration value %s", b)
	}
	*d = Duration(ns)
	return nil
}

// Config is the construction-time configuration of a Client. It is consumed
// once by New and immutable afterwards.
type Config struct {
	// MaxBytes is the cache capacity budget for stored payloads.
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// DefaultTTL applies to Load calls that do not choose their own TTL.
	DefaultTTL Duration `json:"default_ttl" yaml:"default_ttl"`

	// CompressThreshold is the raw payload size in bytes above which
	// payloads are compressed before caching.
	CompressThreshold int `json:"compress_threshold" yaml:"compress_threshold"`

	// Codec selects the compression codec: "none", "gzip" or "brotli".
	Codec string `json:"codec" yaml:"codec"`
}

// Validate checks the configuration for values WithDefaults cannot repair.
func (c *Config) Validate() error {
	if c.MaxBytes < 0 {
		return errors.New("max_bytes must not be negative")
	}
	if c.CompressThreshold < 0 {
		return errors.New("compress_threshold must not be negative")
	}
	if _, err := cache.ParseCodec(c.Codec); err != nil {
		return err
	}
	return nil
}

// WithDefaults returns a copy of Config with sane defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 64 << 20
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = Duration(5 * time.Minute)
	}
	if cfg.CompressThreshold == 0 {
		cfg.CompressThreshold = 256 << 10
	}
	if cfg.Codec == "" {
		cfg.Codec = "gzip"
	}

	return cfg
}
