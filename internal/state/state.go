// Package state implements the State & Idempotence Layer (spec.md §4.8,
// C8): BlogState (what's been generated) and BlogMemory (non-repetition
// record), plus the scratch-then-commit pattern every synthesis stage
// writes through. Grounded on original_source/src/blog/{state,blog_memory}.py.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/memory"
)

// PostRecord is one generated blog post's idempotence record (spec.md
// §4.8: "{slug, post_type, generated_at, source_dates, file_path}").
type PostRecord struct {
	Slug        string    `json:"slug"`
	PostType    string    `json:"post_type"`
	GeneratedAt time.Time `json:"generated_at"`
	SourceDates []string  `json:"source_dates"`
	FilePath    string    `json:"file_path"`
	ConfigHash  string    `json:"config_hash"`
}

// BlogState tracks which blog posts have already been generated.
type BlogState struct {
	Posts []PostRecord `json:"posts"`
}

// IsGenerated reports whether slug already has a record, optionally
// requiring the record's config hash to match configHash (spec.md §4.8
// rule 1: "skip if up-to-date (same inputs, same config hash)"). An empty
// configHash skips that check.
func (s BlogState) IsGenerated(slug, configHash string) bool {
	for _, p := range s.Posts {
		if p.Slug != slug {
			continue
		}
		if configHash == "" || p.ConfigHash == configHash {
			return true
		}
	}
	return false
}

// MarkGenerated replaces any existing record for rec.Slug.
func (s *BlogState) MarkGenerated(rec PostRecord) {
	var kept []PostRecord
	for _, p := range s.Posts {
		if p.Slug != rec.Slug {
			kept = append(kept, p)
		}
	}
	s.Posts = append(kept, rec)
}

// PostSummary is a published post's cross-referencing summary (spec.md
// §4.7's non-repetition avoid-list source), grounded on blog_memory.py's
// BlogPostSummary.
type PostSummary struct {
	Slug                string    `json:"slug"`
	Title               string    `json:"title"`
	PostType            string    `json:"post_type"`
	Date                time.Time `json:"date"`
	KeyPoints           []string  `json:"key_points"`
	ThemesCovered       []string  `json:"themes_covered"`
	ExamplesUsed        []string  `json:"examples_used"`
	PlatformsPublished  []string  `json:"platforms_published"`
}

// BlogMemory is the rolling memory of published blog content.
type BlogMemory struct {
	Posts []PostSummary `json:"posts"`
}

// AddPost replaces any existing summary with the same slug, per
// blog_memory.py's add_post.
func (m *BlogMemory) AddPost(summary PostSummary) {
	var kept []PostSummary
	for _, p := range m.Posts {
		if p.Slug != summary.Slug {
			kept = append(kept, p)
		}
	}
	m.Posts = append(kept, summary)
}

// IsPublishedTo reports whether slug has already been delivered to
// platform.
func (m BlogMemory) IsPublishedTo(slug, platform string) bool {
	for _, p := range m.Posts {
		if p.Slug == slug {
			for _, pl := range p.PlatformsPublished {
				if pl == platform {
					return true
				}
			}
		}
	}
	return false
}

// MarkPublished appends platform to slug's PlatformsPublished, if absent.
func (m *BlogMemory) MarkPublished(slug, platform string) {
	for i, p := range m.Posts {
		if p.Slug != slug {
			continue
		}
		for _, pl := range p.PlatformsPublished {
			if pl == platform {
				return
			}
		}
		m.Posts[i].PlatformsPublished = append(m.Posts[i].PlatformsPublished, platform)
		return
	}
}

// LastNPosts returns the most recent n posts by date, newest first, used
// to build the non-repetition avoid-list (spec.md §4.7, default M=10).
func (m BlogMemory) LastNPosts(n int) []PostSummary {
	sorted := append([]PostSummary(nil), m.Posts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Store persists BlogState and BlogMemory under outputDir/blog/.
type Store struct {
	outputDir string
	logger    zerolog.Logger
}

// New creates a state.Store rooted at outputDir.
func New(outputDir string, logger zerolog.Logger) *Store {
	return &Store{outputDir: outputDir, logger: logger.With().Str("component", "state.store").Logger()}
}

func (s *Store) statePath() string  { return filepath.Join(s.outputDir, "blog", ".blog-state.json") }
func (s *Store) memoryPath() string { return filepath.Join(s.outputDir, "blog", ".blog-memory.json") }

// LoadState returns the persisted BlogState, or an empty one if missing or
// corrupt (tolerant, per original_source's load_blog_state).
func (s *Store) LoadState() BlogState {
	var st BlogState
	data, err := os.ReadFile(s.statePath()) //#nosec G304 -- outputDir is operator-configured
	if err != nil {
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn().Err(err).Msg("corrupt blog state, starting fresh")
		return BlogState{}
	}
	return st
}

// CommitState atomically persists st.
func (s *Store) CommitState(st BlogState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return memory.WriteAtomic(s.statePath(), data)
}

// LoadMemory returns the persisted BlogMemory, or an empty one if missing
// or corrupt.
func (s *Store) LoadMemory() BlogMemory {
	var bm BlogMemory
	data, err := os.ReadFile(s.memoryPath()) //#nosec G304 -- outputDir is operator-configured
	if err != nil {
		return bm
	}
	if err := json.Unmarshal(data, &bm); err != nil {
		s.logger.Warn().Err(err).Msg("corrupt blog memory, starting fresh")
		return BlogMemory{}
	}
	return bm
}

// CommitMemory atomically persists bm.
func (s *Store) CommitMemory(bm BlogMemory) error {
	data, err := json.MarshalIndent(bm, "", "  ")
	if err != nil {
		return err
	}
	return memory.WriteAtomic(s.memoryPath(), data)
}
