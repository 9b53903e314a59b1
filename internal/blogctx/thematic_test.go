package blogctx

import (
	"testing"
	"time"

	"github.com/aschepis/distill/internal/model"
)

func entryOn(date, body string, tags ...string) model.JournalEntry {
	return model.JournalEntry{Date: date, BodyMarkdown: body, Tags: tags}
}

func TestThematicCandidatesOrganicThreadWithoutCatalogMatch(t *testing.T) {
	// "zig build caching" matches no Themes catalog entry/pattern, but per
	// spec.md §4.6 any thread crossing the mention threshold is a candidate
	// regardless of whether the catalog happens to recognize it.
	threads := map[string]model.MemoryThread{
		"zig build caching": {Name: "zig build caching", Summary: "notes on caching", MentionCount: 5, LastSeen: "2026-03-01"},
	}
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	candidates := ThematicCandidates(threads, nil, nil, nil, 3, asOf)
	if len(candidates) != 1 {
		t.Fatalf("expected the organic thread to become a candidate, got %d candidates", len(candidates))
	}
	if candidates[0].Theme.Slug != "zig-build-caching" {
		t.Errorf("synthetic theme slug = %q, want zig-build-caching", candidates[0].Theme.Slug)
	}
}

func TestThematicCandidatesThreadJustReachingThresholdAppears(t *testing.T) {
	threads := map[string]model.MemoryThread{
		"ongoing topic": {Name: "ongoing topic", MentionCount: 3, LastSeen: "2026-03-01"},
	}
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	candidates := ThematicCandidates(threads, nil, nil, nil, 3, asOf)
	if len(candidates) != 1 {
		t.Fatalf("thread at exactly K=3 mentions should be a candidate, got %d", len(candidates))
	}
}

func TestThematicCandidatesBelowThresholdExcluded(t *testing.T) {
	threads := map[string]model.MemoryThread{
		"ongoing topic": {Name: "ongoing topic", MentionCount: 2, LastSeen: "2026-03-01"},
	}
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	candidates := ThematicCandidates(threads, nil, nil, nil, 3, asOf)
	if len(candidates) != 0 {
		t.Errorf("thread below K should not be a candidate, got %d", len(candidates))
	}
}

func TestThematicCandidatesExcludesAlreadyPosted(t *testing.T) {
	threads := map[string]model.MemoryThread{
		"ongoing topic": {Name: "ongoing topic", MentionCount: 5, LastSeen: "2026-03-01"},
	}
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	candidates := ThematicCandidates(threads, nil, nil, map[string]bool{"ongoing-topic": true}, 3, asOf)
	if len(candidates) != 0 {
		t.Errorf("thread with an existing post should be excluded, got %d", len(candidates))
	}
}

func TestThematicCandidatesExcludesStaleThreads(t *testing.T) {
	threads := map[string]model.MemoryThread{
		"stale topic": {Name: "stale topic", MentionCount: 10, LastSeen: "2026-01-01"},
	}
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	candidates := ThematicCandidates(threads, nil, nil, nil, 3, asOf)
	if len(candidates) != 0 {
		t.Errorf("thread last seen over 30 days ago should be excluded, got %d", len(candidates))
	}
}

func TestThematicCandidatesCatalogMatchUsesCatalogDefinition(t *testing.T) {
	threads := map[string]model.MemoryThread{
		"healthy-friction": {Name: "healthy-friction", MentionCount: 5, LastSeen: "2026-03-01"},
	}
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	entries := []model.JournalEntry{
		entryOn("2026-02-28", "we saw healthy friction catch a real bug"),
		entryOn("2026-03-01", "another coverage gap caught via healthy friction"),
		entryOn("2026-03-02", "revision cycle improved after healthy friction"),
	}

	candidates := ThematicCandidates(threads, nil, entries, nil, 3, asOf)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Theme.Slug != "healthy-friction-works" {
		t.Errorf("slug = %q, want the catalog's slug", candidates[0].Theme.Slug)
	}
}

func TestThematicCandidatesOrderingByMentionCountThenRecency(t *testing.T) {
	threads := map[string]model.MemoryThread{
		"topic a": {Name: "topic a", MentionCount: 5, LastSeen: "2026-03-01"},
		"topic b": {Name: "topic b", MentionCount: 8, LastSeen: "2026-02-28"},
	}
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	candidates := ThematicCandidates(threads, nil, nil, nil, 3, asOf)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Theme.Slug != "topic-b" {
		t.Errorf("expected higher mention_count first, got %q", candidates[0].Theme.Slug)
	}
}
