package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// janitorGracePeriod is how recently a file must have been modified to
// be left alone by Janitor (spec §6: "a best-effort janitor operation
// that skips files modified within the last 60 seconds").
const janitorGracePeriod = 60 * time.Second

// Janitor removes stale files from dir: every regular file whose
// modification time is older than janitorGracePeriod. It is a
// best-effort sweep for spill files left behind by a crashed or killed
// coordinator, not a substitute for Coordinator.Run's own
// cleanup-on-error path. It keeps going past individual removal errors
// and returns the first one encountered.
func Janitor(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("analysis: janitor read dir: %w", err)
	}
	now := time.Now()
	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("analysis: janitor stat %s: %w", e.Name(), err)
			}
			continue
		}
		if now.Sub(info.ModTime()) < janitorGracePeriod {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("analysis: janitor remove %s: %w", path, err)
		}
	}
	return firstErr
}
