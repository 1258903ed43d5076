package analysis

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJanitorSkipsRecentFiles(t *testing.T) {
	dir := t.TempDir()
	recent := filepath.Join(dir, "recent.db")
	stale := filepath.Join(dir, "stale.db")
	if err := os.WriteFile(recent, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * janitorGracePeriod)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	if err := Janitor(dir); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("recent file was removed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale file was not removed: %v", err)
	}
}
