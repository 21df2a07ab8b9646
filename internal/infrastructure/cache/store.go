package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/nutriagg/backend/internal/domain"
)

const keyPrefix = "cache:"

// Store is a key -> FoodItem cache with TTL expiry, size-bounded
// eviction by insertion time, and hit/miss accounting. Entries persist
// through a KVStore; hit/miss counters are session-scoped.
type Store struct {
	kv         domain.KVStore
	defaultTTL time.Duration
	maxEntries int

	mutex   sync.RWMutex
	created map[string]time.Time // insertion-time index for eviction
	hits    uint64
	misses  uint64

	now func() time.Time // injectable for testing
}

// Options tunes the cache bounds.
type Options struct {
	DefaultTTL time.Duration
	MaxEntries int
}

// NewStore creates a cache over kv, rebuilding the insertion-time index
// from any entries a durable store already holds.
func NewStore(kv domain.KVStore, opts Options) *Store {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 24 * time.Hour
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}

	s := &Store{
		kv:         kv,
		defaultTTL: opts.DefaultTTL,
		maxEntries: opts.MaxEntries,
		created:    make(map[string]time.Time),
		now:        time.Now,
	}
	s.rebuildIndex()
	return s
}

// WithNow sets a fixed clock for testing.
func (s *Store) WithNow(now func() time.Time) *Store {
	s.now = now
	return s
}

// rebuildIndex scans persisted entries so eviction order survives a
// restart. Unreadable entries are dropped here rather than at lookup.
func (s *Store) rebuildIndex() {
	keys, err := s.kv.Keys(keyPrefix)
	if err != nil {
		return
	}
	for _, k := range keys {
		raw, err := s.kv.Get(k)
		if err != nil {
			continue
		}
		var entry domain.CacheEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			_ = s.kv.Delete(k)
			continue
		}
		s.created[k] = entry.CreatedAt
	}
}

// Get returns the cached item for key, or nil on a miss. Expired and
// corrupt entries count as misses and are removed.
func (s *Store) Get(key string) *domain.FoodItem {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	storeKey := keyPrefix + key
	raw, err := s.kv.Get(storeKey)
	if err != nil {
		s.misses++
		return nil
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Corrupt entry: discard and treat as absent.
		_ = s.kv.Delete(storeKey)
		delete(s.created, storeKey)
		s.misses++
		return nil
	}

	if entry.Expired(s.now()) {
		_ = s.kv.Delete(storeKey)
		delete(s.created, storeKey)
		s.misses++
		return nil
	}

	s.hits++
	item := entry.Data
	return &item
}

// Has reports whether key holds an unexpired entry, without touching
// the hit/miss counters.
func (s *Store) Has(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	raw, err := s.kv.Get(keyPrefix + key)
	if err != nil {
		return false
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return false
	}
	return !entry.Expired(s.now())
}

// Set stores item under key with the given TTL (the default when ttl
// <= 0), evicting oldest-by-insertion entries once over the cap.
func (s *Store) Set(key string, item domain.FoodItem, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	storeKey := keyPrefix + key
	entry := domain.CacheEntry{
		Key:       key,
		Data:      item,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.kv.Set(storeKey, raw); err != nil {
		return err
	}
	s.created[storeKey] = now

	s.evictOver(s.maxEntries)
	return nil
}

// evictOver removes oldest-by-insertion entries until at most cap
// remain. Caller holds the write lock.
func (s *Store) evictOver(cap int) {
	if len(s.created) <= cap {
		return
	}

	type aged struct {
		key     string
		created time.Time
	}
	entries := make([]aged, 0, len(s.created))
	for k, c := range s.created {
		entries = append(entries, aged{key: k, created: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].created.Before(entries[j].created)
	})

	for i := 0; len(s.created) > cap && i < len(entries); i++ {
		_ = s.kv.Delete(entries[i].key)
		delete(s.created, entries[i].key)
	}
}

// Clear removes all entries. Counters keep their session totals.
func (s *Store) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for k := range s.created {
		_ = s.kv.Delete(k)
	}
	s.created = make(map[string]time.Time)
}

// Stats returns size and session hit/miss counts. HitRate is 0 before
// any lookup has happened.
func (s *Store) Stats() domain.CacheStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := domain.CacheStats{
		Size:   len(s.created),
		Hits:   s.hits,
		Misses: s.misses,
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRate = float64(s.hits) / float64(total)
	}
	return stats
}
