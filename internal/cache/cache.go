package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Codec identifies the compression applied to a stored payload. It is
// recorded per entry so Get can decompress correctly even if the store's
// configured codec changes between a Put and a Get.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecGzip
	CodecBrotli
)

func (c Codec) String() string {
	switch c {
	case CodecGzip:
		return "gzip"
	case CodecBrotli:
		return "brotli"
	default:
		return "none"
	}
}

// ParseCodec maps a configuration string to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "", "none":
		return CodecNone, nil
	case "gzip":
		return CodecGzip, nil
	case "brotli", "br":
		return CodecBrotli, nil
	default:
		return CodecNone, fmt.Errorf("unknown compression codec %q", s)
	}
}

// Stats is a read-only snapshot of store counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	SizeBytes int64  `json:"size_bytes"`
	Entries   int    `json:"entries"`
}

// Cache is the interface consumed by the loader and the facade.
// Implemented by the in-memory store and the logging decorator.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Stats() Stats
}

var errUnknownCodec = errors.New("payload recorded with unknown codec")
