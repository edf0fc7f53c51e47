package fsutil

import (
	"errors"
	"fmt"

	"github.com/banshee-data/particulate.report/internal/monitoring"
)

// FindDataDir returns the first candidate that exists and is a directory.
// When none does, the last candidate is created and returned. Candidates
// that exist as plain files are skipped.
func FindDataDir(fsys FileSystem, candidates ...string) (string, error) {
	if len(candidates) == 0 {
		return "", errors.New("no data directory candidates")
	}
	for _, dir := range candidates {
		info, err := fsys.Stat(dir)
		if err != nil {
			continue
		}
		if info.IsDir() {
			return dir, nil
		}
		monitoring.Logf("[fsutil] %s exists but is not a directory, skipping", dir)
	}

	fallback := candidates[len(candidates)-1]
	if err := fsys.MkdirAll(fallback, 0o755); err != nil {
		return "", fmt.Errorf("create data directory %s: %w", fallback, err)
	}
	monitoring.Logf("[fsutil] created data directory %s", fallback)
	return fallback, nil
}
