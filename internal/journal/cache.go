package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// cacheEntry records the inputs an already-generated JournalEntry was built
// from, so a later run can tell whether the contributing session set has
// changed (spec.md §4.5's cache-before-compute rule).
type cacheEntry struct {
	SessionSetHash string    `json:"session_set_hash"`
	GeneratedAt    time.Time `json:"generated_at"`
	Pending        bool      `json:"pending,omitempty"` // journal_pending flag, spec.md §4.5 failure semantics
}

// cache is a JSON-file-backed map of "date:style" -> cacheEntry, mirroring
// original_source/src/journal/cache.py's JournalCache but keyed on the full
// session-id set rather than just a count, per the spec's cache-key rule.
type cache struct {
	path string
	data map[string]cacheEntry
}

func loadCache(outputDir string) *cache {
	c := &cache{path: filepath.Join(outputDir, "journal", ".journal-cache.json"), data: make(map[string]cacheEntry)}
	data, err := os.ReadFile(c.path) //#nosec G304 -- outputDir is operator-configured
	if err != nil {
		return c
	}
	_ = json.Unmarshal(data, &c.data) // a corrupt cache is treated as empty, not fatal
	return c
}

func (c *cache) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		return fmt.Errorf("journal: create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: marshal cache: %w", err)
	}
	return os.WriteFile(c.path, data, 0o600) //#nosec G306 -- cache is non-secret bookkeeping
}

func cacheKey(date, style string) string {
	return date + ":" + style
}

// sessionSetHash hashes the sorted set of session ids so the cache can
// detect when the contributing sessions for a date have changed.
func sessionSetHash(sessionIDs []string) string {
	sorted := append([]string(nil), sessionIDs...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// isCached reports whether a non-pending JournalEntry already exists for
// this exact session set, per spec.md §4.5.
func (c *cache) isCached(date, style string, sessionIDs []string) bool {
	entry, ok := c.data[cacheKey(date, style)]
	if !ok || entry.Pending {
		return false
	}
	return entry.SessionSetHash == sessionSetHash(sessionIDs)
}

func (c *cache) isPending(date, style string) bool {
	entry, ok := c.data[cacheKey(date, style)]
	return ok && entry.Pending
}

func (c *cache) markGenerated(date, style string, sessionIDs []string) {
	c.data[cacheKey(date, style)] = cacheEntry{
		SessionSetHash: sessionSetHash(sessionIDs),
		GeneratedAt:    time.Now().UTC(),
	}
}

// markPending records that all retry attempts for (date, style) failed, so
// downstream stages can skip this date until a subsequent run clears it
// (spec.md §4.5: "mark the date as journal_pending in a per-day state flag").
func (c *cache) markPending(date, style string, sessionIDs []string) {
	c.data[cacheKey(date, style)] = cacheEntry{
		SessionSetHash: sessionSetHash(sessionIDs),
		GeneratedAt:    time.Now().UTC(),
		Pending:        true,
	}
}
