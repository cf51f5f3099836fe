// Package cache persists raw transaction pages and processed series
// under normalized pair keys, with per-kind TTLs, byte ceilings and a
// periodic eviction sweep. It is a refreshable derived cache, not a
// source of truth: concurrent writers to one key race last-write-wins.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"xrpl-amm-history/internal/observability"
)

// ErrMiss is returned by stores when a key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the backing key-value store. Production uses Redis, tests an
// in-memory map.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Kind discriminates the cache namespaces.
type Kind string

// Cache kinds. Raw pages live longest; processed series are cheap to
// regenerate and their orientation can flip as data arrives, so they
// expire faster. Aggregate holds coarse derived records (stats).
const (
	KindRaw       Kind = "raw"
	KindProcessed Kind = "processed"
	KindAggregate Kind = "aggregate"
)

// Prefix returns the key namespace for a kind.
func (k Kind) Prefix() string {
	switch k {
	case KindRaw:
		return "history:raw:"
	case KindProcessed:
		return "history:series:"
	default:
		return "history:agg:"
	}
}

// TTL returns the entry lifetime for a kind.
func (k Kind) TTL() time.Duration {
	if k == KindRaw {
		return 6 * time.Hour
	}
	return 30 * time.Minute
}

// ByteCeiling returns the per-entry size limit for a kind. Oversized
// entries are dropped, not written.
func (k Kind) ByteCeiling() int {
	if k == KindRaw {
		return 1 << 20 // 1MB
	}
	return 512 << 10 // 512KB
}

// Record caps applied at write time, independent of byte size.
const (
	RawRecordCap       = 1000
	ProcessedRecordCap = 500
)

// CapRecords trims a record slice to the kind's cap, keeping the tail
// (the most recent records, given chronological order).
func CapRecords[T any](kind Kind, records []T) []T {
	limit := ProcessedRecordCap
	if kind == KindRaw {
		limit = RawRecordCap
	}
	if len(records) <= limit {
		return records
	}
	return records[len(records)-limit:]
}

// Entry is the persisted envelope.
type Entry struct {
	Data            json.RawMessage `json:"data"`
	Timestamp       int64           `json:"timestamp"`
	Expires         int64           `json:"expires"`
	AssetOrder      string          `json:"assetOrder,omitempty"`
	LastLedgerIndex int64           `json:"lastLedgerIndex,omitempty"`
}

// Options configures a Layer.
type Options struct {
	Store Store
	// MaxEntries bounds the total entry count across all kinds. 0 means
	// DefaultMaxEntries.
	MaxEntries int
	// MaxBytes bounds the aggregate byte size across all kinds. 0 means
	// DefaultMaxBytes.
	MaxBytes int64
	// CleanupAge is the recency threshold for the aggressive cleanup
	// pass after a storage-quota failure. 0 means DefaultCleanupAge.
	CleanupAge time.Duration
	Logger     *log.Logger
	Metrics    *observability.Metrics
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Global ceiling defaults.
const (
	DefaultMaxEntries = 200
	DefaultMaxBytes   = 16 << 20 // 16MB
	DefaultCleanupAge = time.Hour
)

// Layer is the cache. All storage errors are recovered locally; no
// method returns an error to the caller.
type Layer struct {
	store      Store
	maxEntries int
	maxBytes   int64
	cleanupAge time.Duration
	logger     *log.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	readingMu sync.Mutex
	reading   map[string]int
}

// New creates a cache Layer.
func New(opts Options) *Layer {
	l := &Layer{
		store:      opts.Store,
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		cleanupAge: opts.CleanupAge,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
		reading:    make(map[string]int),
	}
	if l.maxEntries <= 0 {
		l.maxEntries = DefaultMaxEntries
	}
	if l.maxBytes <= 0 {
		l.maxBytes = DefaultMaxBytes
	}
	if l.cleanupAge <= 0 {
		l.cleanupAge = DefaultCleanupAge
	}
	if l.logger == nil {
		l.logger = log.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Get returns the entry for a pair key, or miss. Expired and unreadable
// entries are deleted on the way out.
func (l *Layer) Get(ctx context.Context, pairKey string, kind Kind) (*Entry, bool) {
	key := kind.Prefix() + pairKey
	l.beginRead(key)
	defer l.endRead(key)

	data, err := l.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			l.logger.Printf("cache: get %s: %v", key, err)
		}
		l.miss(kind)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		l.logger.Printf("cache: corrupt entry %s: %v", key, err)
		l.store.Delete(ctx, key)
		l.miss(kind)
		return nil, false
	}

	if entry.Expires < l.now().UnixMilli() {
		l.store.Delete(ctx, key)
		l.miss(kind)
		return nil, false
	}

	if l.metrics != nil {
		l.metrics.CacheHits.WithLabelValues(string(kind)).Inc()
	}
	return &entry, true
}

func (l *Layer) miss(kind Kind) {
	if l.metrics != nil {
		l.metrics.CacheMisses.WithLabelValues(string(kind)).Inc()
	}
}

// PutOptions carries the raw-kind sidecar fields and an optional reduced
// payload for the quota-retry path.
type PutOptions struct {
	AssetOrder      string
	LastLedgerIndex int64
	// Reduced, if set, supplies a smaller payload for the single retry
	// after a quota failure.
	Reduced func() ([]byte, bool)
}

// Put writes a payload under a pair key. Payloads over the kind's byte
// ceiling are silently dropped. A storage failure triggers one
// aggressive cleanup pass and one retry with a reduced payload and a
// halved TTL; if that also fails the write is abandoned. Never returns
// an error.
func (l *Layer) Put(ctx context.Context, pairKey string, kind Kind, payload []byte, opts PutOptions) {
	key := kind.Prefix() + pairKey
	now := l.now().UnixMilli()
	ttl := kind.TTL()

	entry := Entry{
		Data:            payload,
		Timestamp:       now,
		Expires:         now + ttl.Milliseconds(),
		AssetOrder:      opts.AssetOrder,
		LastLedgerIndex: opts.LastLedgerIndex,
	}
	blob, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("cache: marshal %s: %v", key, err)
		return
	}
	if len(blob) > kind.ByteCeiling() {
		if l.metrics != nil {
			l.metrics.CacheDropped.Inc()
		}
		return
	}

	if err := l.store.Put(ctx, key, blob, ttl); err == nil {
		return
	}

	// Quota pressure: clear stale entries, then retry once smaller and
	// shorter-lived.
	l.cleanup(ctx)

	if opts.Reduced != nil {
		if reduced, ok := opts.Reduced(); ok {
			entry.Data = reduced
		}
	}
	ttl = ttl / 2
	entry.Expires = now + ttl.Milliseconds()
	blob, err = json.Marshal(entry)
	if err != nil {
		return
	}
	if err := l.store.Put(ctx, key, blob, ttl); err != nil {
		l.logger.Printf("cache: write abandoned for %s: %v", key, err)
	}
}

// Delete removes a pair key from one namespace.
func (l *Layer) Delete(ctx context.Context, pairKey string, kind Kind) {
	l.store.Delete(ctx, kind.Prefix()+pairKey)
}

// cleanup removes entries older than the recency threshold, across all
// kinds.
func (l *Layer) cleanup(ctx context.Context) {
	cutoff := l.now().Add(-l.cleanupAge).UnixMilli()
	for _, item := range l.scan(ctx) {
		if item.entry.Timestamp < cutoff {
			l.store.Delete(ctx, item.key)
		}
	}
}

type scannedEntry struct {
	key   string
	entry Entry
	size  int64
}

// scan loads every live entry. Unreadable and expired entries are
// deleted as they are encountered and not returned.
func (l *Layer) scan(ctx context.Context) []scannedEntry {
	now := l.now().UnixMilli()
	var out []scannedEntry

	for _, kind := range []Kind{KindRaw, KindProcessed, KindAggregate} {
		keys, err := l.store.Keys(ctx, kind.Prefix())
		if err != nil {
			l.logger.Printf("cache: list %s: %v", kind.Prefix(), err)
			continue
		}
		for _, key := range keys {
			data, err := l.store.Get(ctx, key)
			if err != nil {
				continue
			}
			var entry Entry
			if err := json.Unmarshal(data, &entry); err != nil {
				l.store.Delete(ctx, key)
				continue
			}
			if entry.Expires < now {
				l.store.Delete(ctx, key)
				continue
			}
			out = append(out, scannedEntry{key: key, entry: entry, size: int64(len(data))})
		}
	}
	return out
}

// Evict enforces the global count and byte ceilings by removing
// oldest-by-timestamp entries first. Entries currently being read are
// never evicted; already-expired entries are removed during the scan and
// do not count.
func (l *Layer) Evict(ctx context.Context) {
	items := l.scan(ctx)

	var total int64
	for _, it := range items {
		total += it.size
	}

	// Oldest first.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].entry.Timestamp < items[j-1].entry.Timestamp; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}

	count := len(items)
	for _, it := range items {
		if count <= l.maxEntries && total <= l.maxBytes {
			break
		}
		if l.beingRead(it.key) {
			continue
		}
		l.store.Delete(ctx, it.key)
		count--
		total -= it.size
		if l.metrics != nil {
			l.metrics.CacheEvictions.Inc()
		}
	}
}

// StartSweeper runs Evict on a ticker until the context is cancelled.
func (l *Layer) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.Evict(ctx)
			}
		}
	}()
}

func (l *Layer) beginRead(key string) {
	l.readingMu.Lock()
	l.reading[key]++
	l.readingMu.Unlock()
}

func (l *Layer) endRead(key string) {
	l.readingMu.Lock()
	if l.reading[key] <= 1 {
		delete(l.reading, key)
	} else {
		l.reading[key]--
	}
	l.readingMu.Unlock()
}

func (l *Layer) beingRead(key string) bool {
	l.readingMu.Lock()
	defer l.readingMu.Unlock()
	return l.reading[key] > 0
}
