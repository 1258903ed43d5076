package analysis

import (
	"io"
	"testing"

	"github.com/kortschak/kmersig/internal/store"
)

func spillContents(t *testing.T, s *Spill) map[uint64]int64 {
	t.Helper()
	out := make(map[uint64]int64)
	it, err := s.DB().SeekFirst()
	if err == io.EOF {
		return out
	}
	if err != nil {
		t.Fatal(err)
	}
	for {
		k, v, err := it.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatal(err)
		}
		out[store.UnmarshalKmerKey(k)] = store.UnmarshalNrow(v)
	}
	return out
}

func buildSpills(t *testing.T, dir string, data []map[uint64]int64) []*Spill {
	t.Helper()
	spills := make([]*Spill, len(data))
	for i, counts := range data {
		s, err := CreateSpill(dir, spillName(i), 1000)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.AddBatch(counts); err != nil {
			t.Fatal(err)
		}
		spills[i] = s
	}
	return spills
}

func spillName(i int) string {
	return "spill-" + string(rune('a'+i)) + ".db"
}

func TestMergeWaveCommutativity(t *testing.T) {
	order1 := []map[uint64]int64{
		{1: 1, 2: 1},
		{2: 1, 3: 1},
		{1: 1},
		{4: 1},
	}
	order2 := []map[uint64]int64{
		{4: 1},
		{1: 1},
		{2: 1, 3: 1},
		{1: 1, 2: 1},
	}

	want := map[uint64]int64{1: 2, 2: 2, 3: 1, 4: 1}

	for _, order := range [][]map[uint64]int64{order1, order2} {
		dir := t.TempDir()
		spills := buildSpills(t, dir, order)
		merged, err := mergeAll(spills)
		if err != nil {
			t.Fatal(err)
		}
		got := spillContents(t, merged)
		merged.Close()
		if len(got) != len(want) {
			t.Fatalf("got %d keys, want %d", len(got), len(want))
		}
		for k, v := range want {
			if got[k] != v {
				t.Fatalf("kmer %d: got nrow %d, want %d", k, got[k], v)
			}
		}
	}
}

func TestMergeWaveOddLeftover(t *testing.T) {
	dir := t.TempDir()
	spills := buildSpills(t, dir, []map[uint64]int64{
		{1: 1},
		{1: 1},
		{1: 1},
	})
	merged, err := mergeAll(spills)
	if err != nil {
		t.Fatal(err)
	}
	defer merged.Close()
	got := spillContents(t, merged)
	if got[1] != 3 {
		t.Fatalf("got nrow %d, want 3", got[1])
	}
}

func TestMergeSingleSpillNoMerge(t *testing.T) {
	dir := t.TempDir()
	spills := buildSpills(t, dir, []map[uint64]int64{{7: 9}})
	merged, err := mergeAll(spills)
	if err != nil {
		t.Fatal(err)
	}
	defer merged.Close()
	got := spillContents(t, merged)
	if got[7] != 9 {
		t.Fatalf("got nrow %d, want 9", got[7])
	}
}
