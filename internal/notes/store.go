// Package notes implements the Seed and EditorialNote stores (spec.md
// §3, §6: ".distill-seeds", ".distill-notes"). Both are small,
// append-mostly JSON files offering the same compare-and-set "mark_used"
// primitive spec.md §5's shared-resource policy requires, grounded on
// internal/memory.Store's load/commit/atomic-write shape.
package notes

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/memory"
	"github.com/aschepis/distill/internal/model"
)

// ErrNotFound is returned by MarkUsed when no seed/note with the given id
// exists.
var ErrNotFound = fmt.Errorf("notes: not found")

// SeedStore owns ".distill-seeds" (spec.md §6).
type SeedStore struct {
	path   string
	logger zerolog.Logger
}

// NewSeedStore returns a SeedStore persisting to path.
func NewSeedStore(path string, logger zerolog.Logger) *SeedStore {
	return &SeedStore{path: path, logger: logger.With().Str("component", "notes.seeds").Logger()}
}

// Load returns every persisted Seed, oldest first, or an empty slice if
// the store has never been written.
func (s *SeedStore) Load() ([]model.Seed, error) {
	seeds, err := loadSeeds(s.path)
	if err != nil {
		return nil, err
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i].CreatedAt.Before(seeds[j].CreatedAt) })
	return seeds, nil
}

// Unused returns the subset of Load not yet consumed by a synthesis pass.
func (s *SeedStore) Unused() ([]model.Seed, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	var unused []model.Seed
	for _, seed := range all {
		if !seed.Used {
			unused = append(unused, seed)
		}
	}
	return unused, nil
}

// Add appends a new Seed and commits.
func (s *SeedStore) Add(seed model.Seed) error {
	seeds, err := loadSeeds(s.path)
	if err != nil {
		return err
	}
	seeds = append(seeds, seed)
	return commitSeeds(s.path, seeds)
}

// MarkUsed performs the compare-and-set spec.md §5 requires: it flips
// Used to true and records usedIn exactly once, regardless of how many
// times it is called for the same id (a second call is a no-op, not an
// error).
func (s *SeedStore) MarkUsed(id string, usedIn string) error {
	seeds, err := loadSeeds(s.path)
	if err != nil {
		return err
	}
	found := false
	for i, seed := range seeds {
		if seed.ID != id {
			continue
		}
		found = true
		if seed.Used {
			break
		}
		seeds[i].Used = true
		seeds[i].UsedIn = usedIn
		break
	}
	if !found {
		return fmt.Errorf("notes: seed %s: %w", id, ErrNotFound)
	}
	return commitSeeds(s.path, seeds)
}

func loadSeeds(path string) ([]model.Seed, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is operator-configured
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("notes: read %s: %w", path, err)
	}
	var seeds []model.Seed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("notes: parse %s: %w", path, err)
	}
	return seeds, nil
}

func commitSeeds(path string, seeds []model.Seed) error {
	data, err := json.MarshalIndent(seeds, "", "  ")
	if err != nil {
		return fmt.Errorf("notes: marshal seeds: %w", err)
	}
	return memory.WriteAtomic(path, data)
}

// EditorialStore owns ".distill-notes" (spec.md §6).
type EditorialStore struct {
	path   string
	logger zerolog.Logger
}

// NewEditorialStore returns an EditorialStore persisting to path.
func NewEditorialStore(path string, logger zerolog.Logger) *EditorialStore {
	return &EditorialStore{path: path, logger: logger.With().Str("component", "notes.editorial").Logger()}
}

// Load returns every persisted EditorialNote, oldest first.
func (s *EditorialStore) Load() ([]model.EditorialNote, error) {
	notes, err := loadNotes(s.path)
	if err != nil {
		return nil, err
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.Before(notes[j].CreatedAt) })
	return notes, nil
}

// ForTarget returns the unused notes matching the given ISO week and
// theme slug (model.EditorialNote.MatchesTarget), in the order needed
// for Synthesizer prompts: global notes first, then week/theme-specific
// ones.
func (s *EditorialStore) ForTarget(isoWeek, themeSlug string) ([]model.EditorialNote, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}
	var global, specific []model.EditorialNote
	for _, n := range all {
		if n.Used || !n.MatchesTarget(isoWeek, themeSlug) {
			continue
		}
		if n.Target == "" {
			global = append(global, n)
			continue
		}
		specific = append(specific, n)
	}
	return append(global, specific...), nil
}

// Add appends a new EditorialNote and commits.
func (s *EditorialStore) Add(note model.EditorialNote) error {
	allNotes, err := loadNotes(s.path)
	if err != nil {
		return err
	}
	allNotes = append(allNotes, note)
	return commitNotes(s.path, allNotes)
}

// MarkUsed is the same compare-and-set primitive as SeedStore.MarkUsed,
// idempotent across repeat calls.
func (s *EditorialStore) MarkUsed(id string) error {
	allNotes, err := loadNotes(s.path)
	if err != nil {
		return err
	}
	found := false
	for i, n := range allNotes {
		if n.ID != id {
			continue
		}
		found = true
		allNotes[i].Used = true
		break
	}
	if !found {
		return fmt.Errorf("notes: editorial note %s: %w", id, ErrNotFound)
	}
	return commitNotes(s.path, allNotes)
}

func loadNotes(path string) ([]model.EditorialNote, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is operator-configured
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("notes: read %s: %w", path, err)
	}
	var allNotes []model.EditorialNote
	if err := json.Unmarshal(data, &allNotes); err != nil {
		return nil, fmt.Errorf("notes: parse %s: %w", path, err)
	}
	return allNotes, nil
}

func commitNotes(path string, allNotes []model.EditorialNote) error {
	data, err := json.MarshalIndent(allNotes, "", "  ")
	if err != nil {
		return fmt.Errorf("notes: marshal editorial notes: %w", err)
	}
	return memory.WriteAtomic(path, data)
}
