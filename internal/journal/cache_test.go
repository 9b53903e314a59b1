package journal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheIsCachedFalseWhenAbsent(t *testing.T) {
	c := loadCache(t.TempDir())
	if c.isCached("2026-01-01", "reflective", []string{"s1"}) {
		t.Errorf("expected uncached date to report not cached")
	}
}

func TestCacheMarkGeneratedThenIsCached(t *testing.T) {
	c := loadCache(t.TempDir())
	c.markGenerated("2026-01-01", "reflective", []string{"s1", "s2"})

	if !c.isCached("2026-01-01", "reflective", []string{"s2", "s1"}) {
		t.Errorf("expected cache hit regardless of session id ordering")
	}
	if c.isCached("2026-01-01", "reflective", []string{"s1", "s2", "s3"}) {
		t.Errorf("expected cache miss when the session set changed")
	}
}

func TestCachePendingBlocksIsCachedUntilCleared(t *testing.T) {
	c := loadCache(t.TempDir())
	c.markPending("2026-01-01", "reflective", []string{"s1"})

	if !c.isPending("2026-01-01", "reflective") {
		t.Errorf("expected date to be marked pending")
	}
	if c.isCached("2026-01-01", "reflective", []string{"s1"}) {
		t.Errorf("a pending entry must never report as cached")
	}

	c.markGenerated("2026-01-01", "reflective", []string{"s1"})
	if c.isPending("2026-01-01", "reflective") {
		t.Errorf("markGenerated should clear the pending flag")
	}
}

func TestCacheSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	c := loadCache(dir)
	c.markGenerated("2026-01-01", "narrative", []string{"s1"})
	if err := c.save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := loadCache(dir)
	if !reloaded.isCached("2026-01-01", "narrative", []string{"s1"}) {
		t.Errorf("expected cache entry to survive a reload")
	}
}

func TestLoadCacheTreatsCorruptFileAsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal", ".journal-cache.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("setup mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("setup write: %v", err)
	}
	c := loadCache(dir)
	if c.isCached("2026-01-01", "reflective", nil) {
		t.Errorf("a corrupt cache file must not report cache hits")
	}
}
