package analysis

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestLocalCursorExhaustion(t *testing.T) {
	c := newLocalCursor(3)
	var got []int
	for {
		n, ok := c.Next()
		if !ok {
			break
		}
		got = append(got, n)
	}
	if len(got) != 3 {
		t.Fatalf("got %d claims, want 3", len(got))
	}
	for i, n := range got {
		if n != i {
			t.Fatalf("claim %d out of order: got %d", i, n)
		}
	}
}

func TestLocalCursorConcurrentClaimsAreUnique(t *testing.T) {
	const n = 200
	c := newLocalCursor(n)
	seen := make([]int32, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				block, ok := c.Next()
				if !ok {
					return
				}
				mu.Lock()
				seen[block]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	for i, n := range seen {
		if n != 1 {
			t.Fatalf("block %d claimed %d times, want 1", i, n)
		}
	}
}

func TestSharedCursorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cursor")
	c, err := newSharedCursor(path, 2)
	if err != nil {
		t.Fatal(err)
	}

	n0, ok := c.Next()
	if !ok || n0 != 0 {
		t.Fatalf("got (%d,%v), want (0,true)", n0, ok)
	}

	other, err := openSharedCursor(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	n1, ok := other.Next()
	if !ok || n1 != 1 {
		t.Fatalf("got (%d,%v), want (1,true)", n1, ok)
	}

	if _, ok := c.Next(); ok {
		t.Fatal("expected cursor to be exhausted after both blocks claimed")
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := other.Close(); err != nil {
		t.Fatal(err)
	}
}
