package analysis

import (
	"bytes"
	"testing"

	"github.com/kortschak/kmersig/codec"
)

// memRowSource is an in-memory RowSource for tests: one block per
// entry in blocks.
type memRowSource struct {
	blocks [][]codec.Sequence
	total  int64
}

func (m *memRowSource) TotalRows() int64 { return m.total }
func (m *memRowSource) NumBlocks() int   { return len(m.blocks) }
func (m *memRowSource) Block(i int) ([]codec.Sequence, error) {
	return m.blocks[i], nil
}

func encodeRow(t *testing.T, s string) codec.Sequence {
	t.Helper()
	seq, err := codec.Encode(codec.Alphabet2, []byte(s))
	if err != nil {
		t.Fatal(err)
	}
	return seq
}

func TestScanRowDedup(t *testing.T) {
	// A single row where "AAAA" recurs many times must contribute
	// exactly 1 to nrow for that k-mer (spec §8 "Row-deduplication
	// property").
	row := encodeRow(t, string(bytes.Repeat([]byte("A"), 109)))

	counts := make(map[uint64]int64)
	seen := make(map[uint64]struct{})
	if err := scanRow(row, 4, seen, counts); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 0 {
		t.Fatalf("seen not drained: %d entries left", len(seen))
	}
	if len(counts) != 1 {
		t.Fatalf("got %d distinct k-mers, want 1", len(counts))
	}
	for _, n := range counts {
		if n != 1 {
			t.Fatalf("got nrow %d, want 1", n)
		}
	}
}

func TestWorkerLoopExhaustsAllBlocks(t *testing.T) {
	source := &memRowSource{
		blocks: [][]codec.Sequence{
			{encodeRow(t, "ACGTACGT")},
			{encodeRow(t, "ACGTACGT")},
			{encodeRow(t, "TTTTTTTT")},
		},
		total: 3,
	}
	dir := t.TempDir()
	spill, err := CreateSpill(dir, "spill.db", 100)
	if err != nil {
		t.Fatal(err)
	}
	defer spill.Close()

	cursor := newLocalCursor(source.NumBlocks())
	var progresses []Progress
	err = WorkerLoop(source, 4, 2, cursor, spill, func(p Progress) {
		progresses = append(progresses, p)
	})
	if err != nil {
		t.Fatal(err)
	}

	got := spillContents(t, spill)
	// "ACGTACGT" (k=4) yields k-mers ACGT,CGTA,GTAC,TACG,ACGT — distinct
	// k-mers {ACGT,CGTA,GTAC,TACG}, each seen once per row it appears in.
	// Two rows of "ACGTACGT" contribute nrow=2 to each of those four
	// k-mers; "TTTTTTTT" contributes nrow=1 to TTTT only.
	if len(got) != 5 {
		t.Fatalf("got %d distinct k-mers, want 5 (4 shared + TTTT)", len(got))
	}
	if len(progresses) == 0 {
		t.Fatal("expected at least one progress callback")
	}
	last := progresses[len(progresses)-1]
	if last.TotalRowsProcessed != 3 {
		t.Fatalf("got total rows processed %d, want 3", last.TotalRowsProcessed)
	}
}
