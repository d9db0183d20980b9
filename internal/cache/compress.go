package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// compress encodes raw with the given codec. CodecNone returns raw unchanged.
func compress(codec Codec, raw []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return raw, nil
	case CodecGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
		return buf.Bytes(), nil
	case CodecBrotli:
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		if _, err := bw.Write(raw); err != nil {
			_ = bw.Close()
			return nil, fmt.Errorf("brotli write: %w", err)
		}
		if err := bw.Close(); err != nil {
			return nil, fmt.Errorf("brotli close: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, errUnknownCodec
	}
}

// decompress decodes a stored payload using the codec recorded at Put time.
func decompress(codec Codec, stored []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return stored, nil
	case CodecGzip:
		zr, err := gzip.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer zr.Close()
		raw, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip read: %w", err)
		}
		return raw, nil
	case CodecBrotli:
		raw, err := io.ReadAll(brotli.NewReader(bytes.NewReader(stored)))
		if err != nil {
			return nil, fmt.Errorf("brotli read: %w", err)
		}
		return raw, nil
	default:
		return nil, errUnknownCodec
	}
}
