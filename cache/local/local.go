// Package local implements the per-process caches of C5: a high-frequency
// k-mer hash set loaded lazily from a persisted entries store, a
// query-pattern LRU, and an adjusted-minimum-score memo. None of the
// types here are safe for concurrent use without external
// serialization (spec §5: "process-local caches are not thread-safe;
// the design assumes a process-per-query or explicit external
// serialization").
package local

import (
	"errors"
	"fmt"
	"io"

	lru "github.com/opencoff/golang-lru"
	"modernc.org/kv"

	"github.com/kortschak/kmersig/cache/cachekey"
	"github.com/kortschak/kmersig/internal/store"
)

// ErrConfigMismatch is returned by Load when the current cache key does
// not match the persisted metadata for (dataset, column, k).
var ErrConfigMismatch = errors.New("local: cache key mismatch")

// DefaultLoadBatch is the default number of entries streamed per
// round-trip while loading the high-frequency set (spec §4.5(a)).
const DefaultLoadBatch = 1000

// DefaultQueryCacheSize is the default capacity of the query-pattern LRU.
const DefaultQueryCacheSize = 256

// Cache is a process-local view of C5. The zero value is not usable;
// construct with New.
type Cache struct {
	key     cachekey.Key
	loaded  bool
	high    map[uint64]struct{}
	queries *lru.Cache
	scores  map[uint64]int
}

// New returns an empty Cache for key, with a query-pattern LRU of the
// given capacity. A capacity of 0 uses DefaultQueryCacheSize.
func New(key cachekey.Key, queryCacheSize int) (*Cache, error) {
	if queryCacheSize <= 0 {
		queryCacheSize = DefaultQueryCacheSize
	}
	q, err := lru.New(queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("local: new query cache: %w", err)
	}
	return &Cache{
		key:     key,
		queries: q,
		scores:  make(map[uint64]int),
	}, nil
}

// Key returns the cache key this Cache was constructed for.
func (c *Cache) Key() cachekey.Key { return c.key }

// Loaded reports whether Load has succeeded.
func (c *Cache) Loaded() bool { return c.loaded }

// Len returns the number of high-frequency k-mers currently loaded.
func (c *Cache) Len() int { return len(c.high) }

// Load validates the cache key against the persisted metadata row for
// (dataset, column, k) and, if it matches, streams the entries store in
// batches of batch entries (DefaultLoadBatch if batch <= 0) into the
// in-memory hash set. It returns ErrConfigMismatch wrapping the
// underlying *cachekey.MismatchError on any parameter difference (spec
// §4.5(a): "any mismatch fails with ConfigMismatch and aborts the
// load").
func (c *Cache) Load(meta, entries *kv.DB, batch int) error {
	if batch <= 0 {
		batch = DefaultLoadBatch
	}

	metaVal, err := meta.Get(nil, store.MarshalMetadataKey(store.MetadataKey{
		Dataset: c.key.Dataset,
		Column:  c.key.Column,
		K:       c.key.K,
	}))
	if err != nil {
		return fmt.Errorf("local: read metadata: %w", err)
	}
	if metaVal == nil {
		return fmt.Errorf("local: no persisted metadata for %s", c.key)
	}
	persistedVal := store.UnmarshalMetadataValue(metaVal)
	persisted := cachekey.Key{
		Dataset:        c.key.Dataset,
		Column:         c.key.Column,
		K:              c.key.K,
		OccurrenceBits: persistedVal.OccurrenceBits,
		MaxRate:        persistedVal.MaxRate,
		MaxNrow:        persistedVal.MaxNrow,
	}
	if diff := cachekey.Diff(persisted, c.key); diff != nil {
		return fmt.Errorf("%w: %v", ErrConfigMismatch, diff)
	}

	high, err := streamHighFrequencySet(entries, batch)
	if err != nil {
		return err
	}

	c.high = high
	c.loaded = true
	return nil
}

// streamHighFrequencySet reads the entries store in chunks of batch
// records at a time (spec §4.5(a)), matching the teacher's
// SeekFirst/Enumerator.Next streaming idiom used throughout this
// module's store access.
func streamHighFrequencySet(entries *kv.DB, batch int) (map[uint64]struct{}, error) {
	high := make(map[uint64]struct{})
	enum, err := entries.SeekFirst()
	if err != nil {
		if err == io.EOF {
			return high, nil
		}
		return nil, fmt.Errorf("local: seek entries: %w", err)
	}
	for {
		for n := 0; n < batch; n++ {
			k, _, err := enum.Next()
			if err != nil {
				if err == io.EOF {
					return high, nil
				}
				return nil, fmt.Errorf("local: read entry: %w", err)
			}
			high[store.UnmarshalKmerKey(k)] = struct{}{}
		}
	}
}

// Contains reports whether kmer is a member of the loaded high-frequency
// set. It is false (not a cache miss error) if Load has not been called.
func (c *Cache) Contains(kmer uint64) bool {
	_, ok := c.high[kmer]
	return ok
}

// CountHigh returns the number of keys in keys that are members of the
// high-frequency set.
func (c *Cache) CountHigh(keys []uint64) int {
	n := 0
	for _, k := range keys {
		if c.Contains(k) {
			n++
		}
	}
	return n
}

// QueryKeys returns the cached key array for (query, k), extracting and
// inserting it via extract if absent (spec §4.5(b): "LRU map from
// (query-string, k) -> extracted key array").
func (c *Cache) QueryKeys(query string, k int, extract func(string, int) ([]uint64, error)) ([]uint64, error) {
	ck := queryCacheKey{query: query, k: k}
	if v, ok := c.queries.Get(ck); ok {
		return v.([]uint64), nil
	}
	keys, err := extract(query, k)
	if err != nil {
		return nil, err
	}
	c.queries.Add(ck, keys)
	return keys, nil
}

type queryCacheKey struct {
	query string
	k     int
}

// AdjustedMinScore returns the memoized adjusted minimum score for the
// filtered key set fp (a fingerprint over the *filtered* set, per the
// Open Question resolution: the memo key excludes high-frequency keys
// dropped by the filter, not the raw extracted set), computing and
// storing it via compute on a miss.
func (c *Cache) AdjustedMinScore(fp uint64, compute func() int) int {
	if v, ok := c.scores[fp]; ok {
		return v
	}
	v := compute()
	c.scores[fp] = v
	return v
}

// Reset discards all cached state, including the loaded high-frequency
// set, forcing the next Load/QueryKeys/AdjustedMinScore call to
// recompute from scratch.
func (c *Cache) Reset() {
	c.high = nil
	c.loaded = false
	c.queries.Purge()
	c.scores = make(map[uint64]int)
}
