// Package memory implements the Memory Store (spec.md §4.4, C4): a durable,
// atomically-committed UnifiedMemory of threads, entities, daily entries,
// and published posts. Grounded on original_source/src/memory.py's
// JSON-file persistence and the spec's explicit write-temp/fsync/rename
// atomicity invariant.
package memory

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path by first writing to a temp file in the
// same directory, fsyncing it, then renaming over path — so a reader never
// observes a torn write. Exported so every component behind the Store
// abstraction (spec.md §4.4's "Shared-resource policy": "All writes go
// through atomic rename") can reuse the same primitive, not just
// UnifiedMemory itself.
func WriteAtomic(path string, data []byte) error {
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("memory: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("memory: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("memory: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("memory: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("memory: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("memory: rename into place: %w", err)
	}
	return nil
}
