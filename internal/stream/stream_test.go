package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func featureCollection(n int) string {
	var b strings.Builder
	b.WriteString(`{"type":"FeatureCollection","numberMatched":`)
	fmt.Fprintf(&b, "%d", n)
	b.WriteString(`,"links":[{"rel":"self","href":"https://example.test/items"}],"features":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b,
			`{"type":"Feature","id":%d,"geometry":{"type":"Point","coordinates":[%d.0,0.0]},"properties":{"name":"f%d"}}`,
			i, i, i)
	}
	b.WriteString(`]}`)
	return b.String()
}

func TestStreamChunkBoundaries(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(featureCollection(25))

	var sizes []int
	emitted, err := Stream(context.Background(), src, 10, func(chunk []Feature) error {
		sizes = append(sizes, len(chunk))
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if emitted != 25 {
		t.Fatalf("expected 25 items emitted, got %d", emitted)
	}
	want := []int{10, 10, 5}
	if len(sizes) != len(want) {
		t.Fatalf("expected %d chunks, got %v", len(want), sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("chunk %d: expected %d items, got %d", i, want[i], sizes[i])
		}
	}
}

func TestStreamZeroItems(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(`{"type":"FeatureCollection","features":[]}`)

	emitted, err := Stream(context.Background(), src, 10, func(chunk []Feature) error {
		t.Error("onChunk must not be invoked for an empty source")
		return nil
	})
	if err != nil {
		t.Fatalf("zero items is success, got %v", err)
	}
	if emitted != 0 {
		t.Fatalf("expected 0 items, got %d", emitted)
	}
}

func TestStreamCancellationBetweenChunks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	src := strings.NewReader(featureCollection(25))

	calls := 0
	emitted, err := Stream(ctx, src, 10, func(chunk []Feature) error {
		calls++
		cancel() // caller cancels while processing the first chunk
		return nil
	})

	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if errors.Is(err, ErrDecode) {
		t.Fatalf("cancellation must be distinguishable from a decode failure")
	}
	if emitted != 10 {
		t.Fatalf("expected 10 items emitted before cancellation, got %d", emitted)
	}
	if calls != 1 {
		t.Fatalf("expected a single chunk before cancellation, got %d", calls)
	}
}

func TestStreamBareArray(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(`[{"type":"Feature","geometry":null},{"type":"Feature","geometry":null}]`)

	emitted, err := Stream(context.Background(), src, 10, func(chunk []Feature) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if emitted != 2 {
		t.Fatalf("expected 2 items, got %d", emitted)
	}
}

func TestStreamDecodeError(t *testing.T) {
	t.Parallel()

	// The second feature is truncated mid-object.
	src := strings.NewReader(`{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null},{"type":`)

	emitted, err := Stream(context.Background(), src, 10, func(chunk []Feature) error {
		return nil
	})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if emitted != 0 {
		t.Fatalf("no chunk was delivered, emitted should be 0, got %d", emitted)
	}
}

func TestStreamMissingFeaturesArray(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(`{"type":"FeatureCollection","numberMatched":3}`)

	if _, err := Stream(context.Background(), src, 10, func([]Feature) error { return nil }); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for a collection without features, got %v", err)
	}
}

func TestStreamConsumerError(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(featureCollection(25))
	errSink := errors.New("sink full")

	calls := 0
	emitted, err := Stream(context.Background(), src, 10, func(chunk []Feature) error {
		calls++
		if calls == 2 {
			return errSink
		}
		return nil
	})
	if !errors.Is(err, errSink) {
		t.Fatalf("expected the consumer error as-is, got %v", err)
	}
	if emitted != 10 {
		t.Fatalf("only the first chunk counts as emitted, got %d", emitted)
	}
}

func TestStreamDecodedFields(t *testing.T) {
	t.Parallel()

	src := strings.NewReader(featureCollection(3))

	var got []Feature
	if _, err := Stream(context.Background(), src, 10, func(chunk []Feature) error {
		got = append(got, chunk...)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 features, got %d", len(got))
	}
	if got[1].Type != "Feature" {
		t.Fatalf("unexpected feature type %q", got[1].Type)
	}
	if string(got[1].ID) != "1" {
		t.Fatalf("unexpected feature id %s", got[1].ID)
	}
	if len(got[1].Geometry) == 0 || len(got[1].Properties) == 0 {
		t.Fatalf("geometry/properties should be carried raw: %+v", got[1])
	}
}
