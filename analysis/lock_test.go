package analysis

import (
	"path/filepath"
	"testing"
)

func TestLockDatasetExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.lock")

	l, err := lockDataset(path)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := lockDataset(path); err != ErrAnalysisInProgress {
		t.Fatalf("got %v, want ErrAnalysisInProgress", err)
	}

	if err := l.Unlock(); err != nil {
		t.Fatal(err)
	}

	l2, err := lockDataset(path)
	if err != nil {
		t.Fatalf("expected lock to be reacquirable after Unlock: %v", err)
	}
	l2.Unlock()
}
