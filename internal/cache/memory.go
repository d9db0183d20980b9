package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mapflow/geocache/internal/metrics"
)

// Config holds the construction-time settings of the in-memory store.
// All fields are immutable for the lifetime of the store.
type Config struct {
	// MaxBytes is the capacity budget for stored (possibly compressed)
	// payloads. The sum of entry sizes only exceeds it in the single
	// oversized-entry case documented on Put.
	MaxBytes int64

	// CompressThreshold is the raw payload size above which payloads are
	// compressed before storage. Payloads at or below it are stored raw.
	CompressThreshold int

	// Codec is the compression codec applied above the threshold.
	Codec Codec
}

// MemoryStore is a bounded in-memory byte cache with LRU eviction, lazy TTL
// expiry and transparent compression of large payloads.
type MemoryStore struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lru      *list.List // front = most recently used
	curBytes int64

	cfg    Config
	logger *zap.Logger

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewMemoryStore creates a store with the given capacity and compression
// settings. A nil logger falls back to a no-op logger.
func NewMemoryStore(cfg Config, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		items:  make(map[string]*list.Element),
		lru:    list.New(),
		cfg:    cfg,
		logger: logger.Named("cache"),
	}
}

// Get retrieves the raw (decompressed) payload for key. An entry past its
// TTL is removed, counted as an eviction and reported as a miss. A hit
// refreshes the entry's recency; a miss performs no mutation beyond the
// lazy expiry removal.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := time.Now()

	s.mu.Lock()
	elem, ok := s.items[key]
	if !ok {
		s.misses++
		s.mu.Unlock()
		return nil, false, nil
	}

	ent := elem.Value.(*entry)
	if ent.expired(now) {
		s.removeElement(elem)
		s.evictions++
		s.misses++
		metrics.CacheEvictionsTotal.Inc()
		s.updateGauges()
		s.mu.Unlock()
		return nil, false, nil
	}

	ent.lastAccess = now
	s.lru.MoveToFront(elem)
	s.hits++
	stored := ent.payload
	codec := ent.codec
	s.mu.Unlock()

	// Entries are immutable once stored, so decompression can run outside
	// the lock on the shared slice.
	raw, err := decompress(codec, stored)
	if err != nil {
		return nil, false, fmt.Errorf("cache: decompress %s payload: %w", codec, err)
	}
	return raw, true, nil
}

// Put stores value under key with the given TTL. Values above the
// compression threshold are compressed with the configured codec; the codec
// used is recorded on the entry. If the insert pushes the store over
// capacity, least-recently-used entries are evicted until it fits. A single
// entry larger than the whole capacity is accepted rather than refused; the
// store never rejects a write for that reason.
//
// A ttl <= 0 removes the key (explicit invalidation).
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		s.mu.Lock()
		if elem, ok := s.items[key]; ok {
			s.removeElement(elem)
			s.updateGauges()
		}
		s.mu.Unlock()
		return nil
	}

	stored := value
	codec := CodecNone
	if s.cfg.Codec != CodecNone && len(value) > s.cfg.CompressThreshold {
		var err error
		stored, err = compress(s.cfg.Codec, value)
		if err != nil {
			return fmt.Errorf("cache: compress payload: %w", err)
		}
		codec = s.cfg.Codec
	} else {
		// Copy to decouple from the caller's buffer.
		stored = make([]byte, len(value))
		copy(stored, value)
	}

	now := time.Now()
	ent := &entry{
		key:        key,
		payload:    stored,
		codec:      codec,
		size:       int64(len(stored)),
		insertedAt: now,
		lastAccess: now,
		ttl:        ttl,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Replacing an existing key is not an eviction.
	if elem, ok := s.items[key]; ok {
		s.removeElement(elem)
	}

	elem := s.lru.PushFront(ent)
	s.items[key] = elem
	s.curBytes += ent.size

	for s.curBytes > s.cfg.MaxBytes && s.lru.Len() > 1 {
		oldest := s.lru.Back()
		if oldest == elem {
			break
		}
		s.removeElement(oldest)
		s.evictions++
		metrics.CacheEvictionsTotal.Inc()
	}

	if s.curBytes > s.cfg.MaxBytes {
		s.logger.Warn("oversized entry exceeds cache capacity, accepting",
			zap.String("key", key),
			zap.Int64("size_bytes", ent.size),
			zap.Int64("max_bytes", s.cfg.MaxBytes),
		)
	}

	s.updateGauges()
	return nil
}

// Stats returns a consistent snapshot of the store counters.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		SizeBytes: s.curBytes,
		Entries:   len(s.items),
	}
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear removes all entries. Useful for tests or manual resets.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.items = make(map[string]*list.Element)
	s.lru.Init()
	s.curBytes = 0
	s.updateGauges()
	s.mu.Unlock()
}

// removeElement unlinks an entry from the LRU list, the key map and the
// size accounting in one step. Callers hold s.mu.
func (s *MemoryStore) removeElement(elem *list.Element) {
	s.lru.Remove(elem)
	ent := elem.Value.(*entry)
	delete(s.items, ent.key)
	s.curBytes -= ent.size
}

func (s *MemoryStore) updateGauges() {
	metrics.CacheSizeBytes.Set(float64(s.curBytes))
	metrics.CacheEntries.Set(float64(len(s.items)))
}
