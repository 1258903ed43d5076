package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFasta(t *testing.T, records map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seqs.fa")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for _, name := range []string{"r1", "r2", "r3"} {
		seq, ok := records[name]
		if !ok {
			continue
		}
		if _, err := f.WriteString(">" + name + "\n" + seq + "\n"); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestFastaSourceBlocksAndRows(t *testing.T) {
	path := writeFasta(t, map[string]string{
		"r1": "ACGTACGT",
		"r2": "TTTTGGGG",
		"r3": "AAAACCCC",
	})

	src, err := Open(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.TotalRows() != 3 {
		t.Fatalf("got TotalRows()=%d, want 3", src.TotalRows())
	}
	if src.NumBlocks() != 2 {
		t.Fatalf("got NumBlocks()=%d, want 2", src.NumBlocks())
	}

	block0, err := src.Block(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(block0) != 2 {
		t.Fatalf("got %d rows in block 0, want 2", len(block0))
	}
	if block0[0].Length != 8 {
		t.Fatalf("got row length %d, want 8", block0[0].Length)
	}

	block1, err := src.Block(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(block1) != 1 {
		t.Fatalf("got %d rows in block 1, want 1", len(block1))
	}

	names := src.Names(0)
	if len(names) != 2 || names[0] != "r1" || names[1] != "r2" {
		t.Fatalf("got names %v, want [r1 r2]", names)
	}
}

func TestFastaSourceBlockOutOfRange(t *testing.T) {
	path := writeFasta(t, map[string]string{"r1": "ACGT"})
	src, err := Open(path, 4)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if _, err := src.Block(5); err == nil {
		t.Fatal("expected an error for an out-of-range block")
	}
}
