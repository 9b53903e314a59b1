package blogctx

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aschepis/distill/internal/model"
)

// ThematicCandidate is a theme with enough evidence to warrant a thematic
// post, plus the journal entries and entity records backing it.
type ThematicCandidate struct {
	Theme        ThemeDefinition
	MentionCount int
	LastSeen     string
	Evidence     []model.JournalEntry
	Entities     []model.EntityRecord
}

// ThematicCandidates returns memory threads eligible for a thematic post —
// a total mention_count >= K, last_seen within the last 30 days, no existing
// thematic post for that slug yet — ranked by (mention_count desc, last_seen
// desc, theme slug asc). The count compared with K is the thread's lifetime
// MentionCount; no 14-day window is applied. Threads with a prior post are
// excluded rather than ranked.
func ThematicCandidates(
	threads map[string]model.MemoryThread,
	entities map[string]model.EntityRecord,
	entries []model.JournalEntry,
	alreadyPosted map[string]bool,
	k int,
	asOf time.Time,
) []ThematicCandidate {
	cutoff30 := asOf.AddDate(0, 0, -30)

	var candidates []ThematicCandidate
	for _, thread := range threads {
		lastSeen, err := time.Parse("2006-01-02", thread.LastSeen)
		if err != nil || lastSeen.Before(cutoff30) {
			continue
		}
		if thread.MentionCount < k {
			continue
		}

		theme, slug, ok := matchTheme(thread.Name)
		if !ok {
			theme, slug = syntheticTheme(thread)
		}
		if alreadyPosted[slug] {
			continue
		}

		evidence := gatherEvidence(theme, entries)
		if countUniqueDates(evidence) < theme.MinEvidenceDays {
			continue
		}

		candidates = append(candidates, ThematicCandidate{
			Theme:        theme,
			MentionCount: thread.MentionCount,
			LastSeen:     thread.LastSeen,
			Evidence:     evidence,
			Entities:     entitiesForTheme(theme, entities),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.MentionCount != b.MentionCount {
			return a.MentionCount > b.MentionCount
		}
		if a.LastSeen != b.LastSeen {
			return a.LastSeen > b.LastSeen
		}
		return a.Theme.Slug < b.Theme.Slug
	})
	return candidates
}

// matchTheme resolves a memory thread's freeform name to a catalog theme
// by thread-pattern substring match, grounded on original_source's
// get_ready_themes + _entry_matches_theme pairing of threads to themes. The
// catalog is consulted first because it supplies richer keywords/description
// for the themes it knows about, but per spec.md §4.6 a theme candidate is
// *any* memory thread crossing the mention threshold — matchTheme failing is
// not itself a reason to drop the thread; see syntheticTheme.
func matchTheme(threadName string) (ThemeDefinition, string, bool) {
	lower := strings.ToLower(threadName)
	for _, theme := range Themes {
		if theme.Slug == lower {
			return theme, theme.Slug, true
		}
		for _, pattern := range theme.ThreadPatterns {
			if strings.Contains(lower, pattern) {
				return theme, theme.Slug, true
			}
		}
	}
	return ThemeDefinition{}, "", false
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	lower := strings.ToLower(name)
	s := nonSlugChars.ReplaceAllString(lower, "-")
	return strings.Trim(s, "-")
}

// syntheticTheme builds a ThemeDefinition directly from a thread's own Name
// and Summary when no catalog entry matches it. This is the pure-dynamic
// path spec.md §4.6 requires: a thread reaching the mention threshold on its
// own is a candidate regardless of whether it happens to resemble one of the
// fixed catalog topics in themes.go. MinEvidenceDays is 0 — the thread's own
// mention_count and recency already established eligibility, so evidence
// gathering here is presentational, not an additional gate.
func syntheticTheme(thread model.MemoryThread) (ThemeDefinition, string) {
	slug := slugify(thread.Name)
	words := strings.Fields(strings.ToLower(thread.Name))
	return ThemeDefinition{
		Slug:            slug,
		Title:           thread.Name,
		Description:     thread.Summary,
		Keywords:        words,
		ThreadPatterns:  []string{strings.ToLower(thread.Name)},
		MinEvidenceDays: 0,
	}, slug
}

// gatherEvidence finds journal entries whose tags or body text reference
// the theme's keywords or thread patterns.
func gatherEvidence(theme ThemeDefinition, entries []model.JournalEntry) []model.JournalEntry {
	var matches []model.JournalEntry
	for _, e := range entries {
		if entryMatchesTheme(e, theme) {
			matches = append(matches, e)
		}
	}
	return matches
}

func entryMatchesTheme(entry model.JournalEntry, theme ThemeDefinition) bool {
	body := strings.ToLower(entry.BodyMarkdown)
	for _, kw := range theme.Keywords {
		if strings.Contains(body, strings.ToLower(kw)) {
			return true
		}
	}
	for _, tag := range entry.Tags {
		lowerTag := strings.ToLower(tag)
		for _, pattern := range theme.ThreadPatterns {
			if strings.Contains(lowerTag, pattern) {
				return true
			}
		}
	}
	return false
}

func countUniqueDates(entries []model.JournalEntry) int {
	seen := make(map[string]bool)
	for _, e := range entries {
		seen[e.Date] = true
	}
	return len(seen)
}

func entitiesForTheme(theme ThemeDefinition, entities map[string]model.EntityRecord) []model.EntityRecord {
	var out []model.EntityRecord
	for _, e := range entities {
		lowerName := strings.ToLower(e.Name)
		for _, kw := range theme.Keywords {
			if strings.Contains(lowerName, strings.ToLower(kw)) {
				out = append(out, e)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
