package analysis

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"modernc.org/kv"

	"github.com/kortschak/kmersig/codec"
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

func TestCoordinatorRunEndToEnd(t *testing.T) {
	// Spec §8 "End-to-end scenario (build + query)": two identical
	// 64-base rows, k=8, max_rate=0.9. threshold = ceil(0.9*2) = 2, so
	// with only 2 rows no k-mer (max nrow 2) is strictly greater than
	// threshold 2 -- use max_rate low enough that shared k-mers qualify.
	base := repeatBases("ATCG", 16) // 64 bases
	source := &memRowSource{
		blocks: [][]codec.Sequence{
			{encodeRow(t, base)},
			{encodeRow(t, base)},
		},
		total: 2,
	}

	dir := t.TempDir()
	meta, entries := openStores(t, dir)
	defer meta.Close()
	defer entries.Close()

	coord := &Coordinator{
		Params: Params{
			Dataset:        "d",
			Column:         "seq",
			K:              8,
			OccurrenceBits: 8,
			MaxRate:        0.5, // ceil(0.5*2)=1; nrow=2 > 1 qualifies
			MaxNrow:        0,
			BatchSize:      10,
			Workers:        2,
		},
		Source:        source,
		TempDir:       dir,
		MetadataStore: meta,
		EntriesStore:  entries,
	}

	result, err := coord.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Threshold != 1 {
		t.Fatalf("got threshold %d, want 1", result.Threshold)
	}
	if result.Persisted == 0 {
		t.Fatal("expected at least one persisted high-frequency k-mer")
	}

	metaVal, err := meta.Get(nil, store.MarshalMetadataKey(store.MetadataKey{Dataset: "d", Column: "seq", K: 8}))
	if err != nil {
		t.Fatal(err)
	}
	if metaVal == nil {
		t.Fatal("expected a persisted metadata row")
	}
	got := store.UnmarshalMetadataValue(metaVal)
	if got.OccurrenceBits != 8 || got.MaxRate != 0.5 {
		t.Fatalf("got metadata %+v, unexpected", got)
	}
}

func TestCoordinatorRunEmptyDataset(t *testing.T) {
	dir := t.TempDir()
	meta, entries := openStores(t, dir)
	defer meta.Close()
	defer entries.Close()

	coord := &Coordinator{
		Params:        Params{Dataset: "d", Column: "seq", K: 8, OccurrenceBits: 8, MaxRate: 0.5},
		Source:        &memRowSource{},
		TempDir:       dir,
		MetadataStore: meta,
		EntriesStore:  entries,
	}
	if _, err := coord.Run(context.Background()); err != ErrEmptyDataset {
		t.Fatalf("got %v, want ErrEmptyDataset", err)
	}
}

func repeatBases(unit string, n int) string {
	return string(bytes.Repeat([]byte(unit), n))
}
