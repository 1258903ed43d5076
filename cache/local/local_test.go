package local

import (
	"errors"
	"path/filepath"
	"testing"

	"modernc.org/kv"

	"github.com/kortschak/kmersig/cache/cachekey"
	"github.com/kortschak/kmersig/internal/store"
)

func openStores(t *testing.T, dir string) (meta, entries *kv.DB) {
	t.Helper()
	var err error
	meta, err = kv.Create(filepath.Join(dir, "metadata.db"), &kv.Options{Compare: store.CompareMetadataKeys})
	if err != nil {
		t.Fatal(err)
	}
	entries, err = kv.Create(filepath.Join(dir, "entries.db"), &kv.Options{Compare: store.CompareKmerKeys})
	if err != nil {
		t.Fatal(err)
	}
	return meta, entries
}

func seedEntries(t *testing.T, entries *kv.DB, kmers ...uint64) {
	t.Helper()
	for _, k := range kmers {
		if err := entries.Set(store.MarshalKmerKey(k), store.MarshalNrow(1)); err != nil {
			t.Fatal(err)
		}
	}
}

func seedMetadata(t *testing.T, meta *kv.DB, key cachekey.Key) {
	t.Helper()
	mk := store.MetadataKey{Dataset: key.Dataset, Column: key.Column, K: key.K}
	mv := store.MetadataValue{OccurrenceBits: key.OccurrenceBits, MaxRate: key.MaxRate, MaxNrow: key.MaxNrow}
	if err := meta.Set(store.MarshalMetadataKey(mk), store.MarshalMetadataValue(mv)); err != nil {
		t.Fatal(err)
	}
}

func TestCacheLoadAndContains(t *testing.T) {
	dir := t.TempDir()
	meta, entries := openStores(t, dir)
	defer meta.Close()
	defer entries.Close()

	key := cachekey.Key{Dataset: "d", Column: "seq", K: 8, OccurrenceBits: 8, MaxRate: 0.1, MaxNrow: 0}
	seedMetadata(t, meta, key)
	seedEntries(t, entries, 1, 2, 3)

	c, err := New(key, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Load(meta, entries, 2); err != nil {
		t.Fatal(err)
	}
	if !c.Loaded() {
		t.Fatal("expected Loaded() true after Load")
	}
	if c.Len() != 3 {
		t.Fatalf("got %d entries, want 3", c.Len())
	}
	for _, k := range []uint64{1, 2, 3} {
		if !c.Contains(k) {
			t.Fatalf("expected %d to be a member", k)
		}
	}
	if c.Contains(99) {
		t.Fatal("99 should not be a member")
	}
	if got := c.CountHigh([]uint64{1, 2, 50, 3}); got != 3 {
		t.Fatalf("got CountHigh=%d, want 3", got)
	}
}

func TestCacheLoadConfigMismatch(t *testing.T) {
	dir := t.TempDir()
	meta, entries := openStores(t, dir)
	defer meta.Close()
	defer entries.Close()

	persisted := cachekey.Key{Dataset: "d", Column: "seq", K: 8, OccurrenceBits: 8, MaxRate: 0.1, MaxNrow: 0}
	seedMetadata(t, meta, persisted)

	current := persisted
	current.MaxRate = 0.2

	c, err := New(current, 0)
	if err != nil {
		t.Fatal(err)
	}
	err = c.Load(meta, entries, 0)
	if !errors.Is(err, ErrConfigMismatch) {
		t.Fatalf("got %v, want ErrConfigMismatch", err)
	}
	if c.Loaded() {
		t.Fatal("Loaded() should be false after a failed Load")
	}
}

func TestCacheQueryKeysCachesExtraction(t *testing.T) {
	key := cachekey.Key{Dataset: "d", Column: "seq", K: 4}
	c, err := New(key, 4)
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	extract := func(q string, k int) ([]uint64, error) {
		calls++
		return []uint64{uint64(len(q)), uint64(k)}, nil
	}

	got1, err := c.QueryKeys("ACGT", 4, extract)
	if err != nil {
		t.Fatal(err)
	}
	got2, err := c.QueryKeys("ACGT", 4, extract)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("extract called %d times, want 1 (second call should hit cache)", calls)
	}
	if len(got1) != len(got2) || got1[0] != got2[0] {
		t.Fatal("cached and fresh extraction results should be identical")
	}

	if _, err := c.QueryKeys("ACGTT", 4, extract); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("extract called %d times, want 2 after a distinct query", calls)
	}
}

func TestCacheAdjustedMinScoreMemoizes(t *testing.T) {
	key := cachekey.Key{Dataset: "d", Column: "seq", K: 4}
	c, err := New(key, 0)
	if err != nil {
		t.Fatal(err)
	}

	calls := 0
	compute := func() int {
		calls++
		return 47
	}

	if got := c.AdjustedMinScore(12345, compute); got != 47 {
		t.Fatalf("got %d, want 47", got)
	}
	if got := c.AdjustedMinScore(12345, compute); got != 47 {
		t.Fatalf("got %d, want 47", got)
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
	if got := c.AdjustedMinScore(99999, compute); got != 47 {
		t.Fatalf("got %d, want 47", got)
	}
	if calls != 2 {
		t.Fatalf("compute called %d times, want 2 for a distinct fingerprint", calls)
	}
}

func TestCacheResetClearsState(t *testing.T) {
	dir := t.TempDir()
	meta, entries := openStores(t, dir)
	defer meta.Close()
	defer entries.Close()

	key := cachekey.Key{Dataset: "d", Column: "seq", K: 8, OccurrenceBits: 8, MaxRate: 0.1}
	seedMetadata(t, meta, key)
	seedEntries(t, entries, 1)

	c, err := New(key, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Load(meta, entries, 0); err != nil {
		t.Fatal(err)
	}
	c.AdjustedMinScore(1, func() int { return 5 })

	c.Reset()
	if c.Loaded() {
		t.Fatal("Loaded() should be false after Reset")
	}
	if c.Contains(1) {
		t.Fatal("Contains should be false after Reset")
	}
}
