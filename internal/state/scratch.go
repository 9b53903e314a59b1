package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/aschepis/distill/internal/memory"
)

// NewScratchKey returns a scratch key unique to one in-flight stage
// attempt, so two concurrent runs writing scratch output for the same
// logical stage (e.g. a manual rerun racing a scheduled one) never
// collide on the same temp file.
func NewScratchKey(stage string) string {
	return stage + "-" + uuid.NewString()
}

// ScratchWriter implements spec.md §4.8 rule 2: each stage writes its
// result to a scratch location first, and is only considered committed
// once the corresponding state record lands. A crash between the two
// leaves an orphan scratch file, which CleanOrphans removes on the next
// run so the stage reruns from scratch rather than serving a half-recorded
// result.
type ScratchWriter struct {
	dir string
}

// NewScratchWriter roots scratch files under dir/.scratch/.
func NewScratchWriter(dir string) *ScratchWriter {
	return &ScratchWriter{dir: filepath.Join(dir, ".scratch")}
}

func (w *ScratchWriter) scratchPath(key string) string {
	return filepath.Join(w.dir, key+".scratch")
}

// WriteScratch writes data to the scratch location for key, atomically.
func (w *ScratchWriter) WriteScratch(key string, data []byte) error {
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return fmt.Errorf("state: create scratch directory: %w", err)
	}
	return memory.WriteAtomic(w.scratchPath(key), data)
}

// PromoteScratch moves the scratch file for key to finalPath, completing
// the commit; call only after the state record update has also succeeded,
// so the two never observably disagree for longer than this one rename.
func (w *ScratchWriter) PromoteScratch(key, finalPath string) error {
	scratch := w.scratchPath(key)
	data, err := os.ReadFile(scratch) //#nosec G304 -- scratch is this process's own temp output
	if err != nil {
		return fmt.Errorf("state: read scratch %s: %w", key, err)
	}
	if err := memory.WriteAtomic(finalPath, data); err != nil {
		return err
	}
	return os.Remove(scratch)
}

// CleanOrphans removes any scratch file for key that was never promoted —
// evidence of a crash between the scratch write and the state commit. The
// caller should then rerun the stage for key.
func (w *ScratchWriter) CleanOrphans(keys []string) {
	for _, key := range keys {
		_ = os.Remove(w.scratchPath(key))
	}
}

// HasOrphan reports whether an unpromoted scratch file exists for key.
func (w *ScratchWriter) HasOrphan(key string) bool {
	_, err := os.Stat(w.scratchPath(key))
	return err == nil
}

// ListOrphans returns the keys of every unpromoted scratch file under dir,
// for startup cleanup when the caller doesn't know ahead of time which
// stage attempts were interrupted by the last crash.
func (w *ScratchWriter) ListOrphans() []string {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".scratch") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".scratch"))
	}
	return keys
}

// CleanAllOrphans removes every unpromoted scratch file under dir and
// returns how many were found. Call once at startup (Orchestrator.New) so a
// crash between a prior run's scratch write and its state commit doesn't
// leave a stale, never-promoted result lying around (spec.md §4.8 rule 2).
func (w *ScratchWriter) CleanAllOrphans() int {
	keys := w.ListOrphans()
	w.CleanOrphans(keys)
	return len(keys)
}
