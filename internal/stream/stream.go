package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/mapflow/geocache/internal/metrics"
)

// DefaultChunkSize is used when a caller passes chunkSize <= 0.
const DefaultChunkSize = 256

var (
	// ErrCancelled classifies a cooperative cancellation observed between
	// chunks. It is an outcome, not a failure: the count returned alongside
	// it is valid and every item counted was delivered.
	ErrCancelled = errors.New("stream cancelled")

	// ErrDecode classifies payloads that could not be parsed as a GeoJSON
	// feature collection or feature array.
	ErrDecode = errors.New("stream decode failed")
)

// Stream incrementally decodes GeoJSON features from r and delivers them to
// onChunk in groups of chunkSize (the final chunk may be smaller). The full
// collection is never materialized. onChunk runs synchronously, so a slow
// consumer throttles decoding; an error from onChunk aborts the stream and
// is returned as-is.
//
// Cancellation is checked between chunks: if ctx is done after an onChunk
// invocation, Stream stops decoding and returns the count delivered so far
// together with ErrCancelled.
//
// r may hold either an OGC API FeatureCollection document or a bare JSON
// array of features. A source with zero features returns (0, nil) without
// invoking onChunk.
func Stream(ctx context.Context, r io.Reader, chunkSize int, onChunk func([]Feature) error) (int, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	dec := json.NewDecoder(r)
	if err := seekFeatureArray(dec); err != nil {
		return 0, err
	}

	emitted := 0
	buf := make([]Feature, 0, chunkSize)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		chunk := buf
		buf = make([]Feature, 0, chunkSize)
		if err := onChunk(chunk); err != nil {
			return err
		}
		emitted += len(chunk)
		metrics.StreamItemsTotal.Add(float64(len(chunk)))
		metrics.StreamChunksTotal.Inc()
		return nil
	}

	for dec.More() {
		var f Feature
		if err := dec.Decode(&f); err != nil {
			return emitted, fmt.Errorf("%w: feature %d: %v", ErrDecode, emitted+len(buf), err)
		}
		buf = append(buf, f)

		if len(buf) == chunkSize {
			if err := flush(); err != nil {
				return emitted, err
			}
			if ctx.Err() != nil {
				return emitted, fmt.Errorf("%w after %d items", ErrCancelled, emitted)
			}
		}
	}

	if err := flush(); err != nil {
		return emitted, err
	}
	return emitted, nil
}

// seekFeatureArray positions dec just inside the feature array. It accepts
// a bare array or a FeatureCollection object, skipping sibling members
// (links, numberMatched, timeStamp and the like) until "features" is found.
func seekFeatureArray(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: read opening token: %v", ErrDecode, err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return fmt.Errorf("%w: expected object or array, got %v", ErrDecode, tok)
	}

	switch delim {
	case '[':
		return nil
	case '{':
		for {
			tok, err := dec.Token()
			if err != nil {
				return fmt.Errorf("%w: read collection member: %v", ErrDecode, err)
			}
			if d, ok := tok.(json.Delim); ok && d == '}' {
				return fmt.Errorf("%w: collection has no features array", ErrDecode)
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("%w: expected member name, got %v", ErrDecode, tok)
			}
			if key == "features" {
				tok, err := dec.Token()
				if err != nil {
					return fmt.Errorf("%w: read features array: %v", ErrDecode, err)
				}
				if d, ok := tok.(json.Delim); !ok || d != '[' {
					return fmt.Errorf("%w: features member is not an array", ErrDecode)
				}
				return nil
			}
			// Skip the member's value without decoding it.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("%w: skip member %q: %v", ErrDecode, key, err)
			}
		}
	default:
		return fmt.Errorf("%w: unexpected delimiter %v", ErrDecode, delim)
	}
}
