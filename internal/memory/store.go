package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

// legacyFile is one per-subsystem memory file the original implementation
// wrote before unification; Store.Load migrates from these on first run if
// no unified file exists yet (original_source/src/memory.py:
// load_unified_memory).
type legacyFile struct {
	path string
	kind string // "journal", "intake", "blog" — a label only; every file is decoded with the same onDisk shape
}

// Store owns the UnifiedMemory's on-disk representation exclusively; no
// other component may read or write it directly (spec.md §3 "Ownership").
type Store struct {
	path        string
	legacyFiles []legacyFile
	logger      zerolog.Logger
}

// New creates a Store persisting to path (".distill-memory" by
// convention). legacyDir, if non-empty, is searched for the three
// pre-unification memory files on first load.
func New(path string, legacyDir string, logger zerolog.Logger) *Store {
	s := &Store{path: path, logger: logger.With().Str("component", "memory.store").Logger()}
	if legacyDir != "" {
		s.legacyFiles = []legacyFile{
			{path: legacyDir + "/journal/.working-memory.json", kind: "journal"},
			{path: legacyDir + "/intake/.intake-memory.json", kind: "intake"},
			{path: legacyDir + "/blog/.blog-memory.json", kind: "blog"},
		}
	}
	return s
}

// onDisk is the JSON wire shape; kept separate from model.UnifiedMemory so
// the map-keyed fields serialize as objects, not Go's map iteration order.
type onDisk struct {
	DailyEntries []model.DailyEntry            `json:"daily_entries"`
	Threads      map[string]model.MemoryThread `json:"threads"`
	Entities     map[string]model.EntityRecord `json:"entities"`
	Published    []model.PublishedRecord       `json:"published"`
}

// Load returns the persisted UnifiedMemory, or an empty one if none exists
// yet — attempting a legacy migration first (spec.md §9 supplement).
func (s *Store) Load() (model.UnifiedMemory, error) {
	data, err := os.ReadFile(s.path) //#nosec G304 -- s.path is operator-configured
	if err != nil {
		if os.IsNotExist(err) {
			if migrated, ok := s.tryMigrateLegacy(); ok {
				return migrated, nil
			}
			return model.NewUnifiedMemory(), nil
		}
		return model.UnifiedMemory{}, fmt.Errorf("memory: read %s: %w", s.path, err)
	}

	var od onDisk
	if err := json.Unmarshal(data, &od); err != nil {
		return model.UnifiedMemory{}, fmt.Errorf("memory: parse %s: %w", s.path, err)
	}
	mem := model.UnifiedMemory{DailyEntries: od.DailyEntries, Threads: od.Threads, Entities: od.Entities, Published: od.Published}
	if mem.Threads == nil {
		mem.Threads = make(map[string]model.MemoryThread)
	}
	if mem.Entities == nil {
		mem.Entities = make(map[string]model.EntityRecord)
	}
	return mem, nil
}

// tryMigrateLegacy attempts to build a UnifiedMemory from whichever
// pre-unification files are present, tolerating corrupt/missing ones
// (original_source/src/memory.py load_unified_memory's try/except chain).
func (s *Store) tryMigrateLegacy() (model.UnifiedMemory, bool) {
	mem := model.NewUnifiedMemory()
	found := false

	for _, lf := range s.legacyFiles {
		data, err := os.ReadFile(lf.path) //#nosec G304 -- lf.path is operator-configured
		if err != nil {
			continue
		}
		var fragment onDisk
		if err := json.Unmarshal(data, &fragment); err != nil {
			s.logger.Warn().Str("file", lf.path).Err(err).Msg("legacy memory file corrupt, skipping")
			continue
		}
		found = true
		mem.DailyEntries = append(mem.DailyEntries, fragment.DailyEntries...)
		for k, v := range fragment.Threads {
			mem.Threads[k] = v
		}
		for k, v := range fragment.Entities {
			mem.Entities[k] = v
		}
		mem.Published = append(mem.Published, fragment.Published...)
	}

	if found {
		s.logger.Info().Int("legacy_files", len(s.legacyFiles)).Msg("migrated legacy memory files into unified memory")
	}
	return mem, found
}

// Commit atomically replaces the persisted UnifiedMemory.
func (s *Store) Commit(mem model.UnifiedMemory) error {
	od := onDisk{DailyEntries: mem.DailyEntries, Threads: mem.Threads, Entities: mem.Entities, Published: mem.Published}
	data, err := json.MarshalIndent(od, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Debug().Int("daily_entries", len(mem.DailyEntries)).Int("threads", len(mem.Threads)).Msg("memory committed")
	return nil
}

// Snapshot returns a deep copy of mem, safe to hand to a concurrent reader
// while the original continues to be mutated elsewhere — the "immutable
// snapshot taken at the start of their task" spec.md §5 requires for
// concurrent synthesizers.
func Snapshot(mem model.UnifiedMemory) model.UnifiedMemory {
	out := model.UnifiedMemory{
		DailyEntries: append([]model.DailyEntry(nil), mem.DailyEntries...),
		Threads:      make(map[string]model.MemoryThread, len(mem.Threads)),
		Entities:     make(map[string]model.EntityRecord, len(mem.Entities)),
		Published:    append([]model.PublishedRecord(nil), mem.Published...),
	}
	for k, v := range mem.Threads {
		out.Threads[k] = v
	}
	for k, v := range mem.Entities {
		out.Entities[k] = v
	}
	return out
}

// RecordDaily sets the daily entry for date to the given fields, replacing
// any existing entry for that date; the earlier entry's fields are not
// merged into the new one.
func RecordDaily(mem *model.UnifiedMemory, date string, sessionIDs, readIDs, themes, insights, decisions, openQuestions []string) {
	entry := model.DailyEntry{
		Date: date, SessionIDs: sessionIDs, ReadIDs: readIDs,
		Themes: themes, Insights: insights, Decisions: decisions, OpenQuestions: openQuestions,
	}
	for i, e := range mem.DailyEntries {
		if e.Date == date {
			mem.DailyEntries[i] = entry
			sortDailyEntries(mem.DailyEntries)
			return
		}
	}
	mem.DailyEntries = append(mem.DailyEntries, entry)
	sortDailyEntries(mem.DailyEntries)
}

func sortDailyEntries(entries []model.DailyEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date < entries[j].Date })
}

// DormancyDays is the default threshold after which an unseen thread is
// marked dormant (spec.md §4.4: "default 14").
const DormancyDays = 14

// UpdateThreads makes each of seenThemes into an active thread as of date,
// updating mention_count/last_seen for existing ones, and marks any thread
// unseen for more than DormancyDays dormant.
func UpdateThreads(mem *model.UnifiedMemory, seenThemes []string, date string, summaries map[string]string) {
	for _, theme := range seenThemes {
		existing, ok := mem.Threads[theme]
		if !ok {
			mem.Threads[theme] = model.MemoryThread{
				Name: theme, Summary: summaries[theme], FirstSeen: date, LastSeen: date,
				MentionCount: 1, Status: model.ThreadActive,
			}
			continue
		}
		existing.LastSeen = date
		existing.MentionCount++
		existing.Status = model.ThreadActive
		if summaries[theme] != "" {
			existing.Summary = summaries[theme]
		}
		mem.Threads[theme] = existing
	}

	parsedDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return
	}
	for name, thread := range mem.Threads {
		lastSeen, err := time.Parse("2006-01-02", thread.LastSeen)
		if err != nil {
			continue
		}
		if parsedDate.Sub(lastSeen).Hours() > DormancyDays*24 && thread.Status != model.ThreadDormant {
			thread.Status = model.ThreadDormant
			mem.Threads[name] = thread
		}
	}
}

// MaxEntityContexts caps the number of recent context snippets kept per
// entity (original_source/src/memory.py track_entity: "capped at 10").
const MaxEntityContexts = 10

// UpdateEntities records a mention of each extracted entity on date,
// keyed by "type:name.lower()" as the original implementation does, with
// recent context snippets capped to MaxEntityContexts.
func UpdateEntities(mem *model.UnifiedMemory, extracted map[string]string, date string, context string) {
	for name, entityType := range extracted {
		key := strings.ToLower(entityType) + ":" + strings.ToLower(name)
		existing, ok := mem.Entities[key]
		if !ok {
			mem.Entities[key] = model.EntityRecord{
				Name: name, EntityType: entityType, FirstSeen: date, LastSeen: date,
				MentionCount: 1, Contexts: trimContexts([]string{context}),
			}
			continue
		}
		existing.LastSeen = date
		existing.MentionCount++
		existing.Contexts = trimContexts(append([]string{context}, existing.Contexts...))
		mem.Entities[key] = existing
	}
}

func trimContexts(contexts []string) []string {
	if len(contexts) > MaxEntityContexts {
		return contexts[:MaxEntityContexts]
	}
	return contexts
}

// RecordPublished appends a PublishedRecord (append-only per spec.md §4.4).
func RecordPublished(mem *model.UnifiedMemory, rec model.PublishedRecord) {
	mem.Published = append(mem.Published, rec)
}

// Prune compacts daily entries older than keepDays into nothing (spec.md
// §3's lifecycle note: "Entries older than a configurable horizon may be
// compacted"); here they are dropped outright once beyond the window,
// since the journal/blog markdown files remain the durable long-term
// record.
func Prune(mem *model.UnifiedMemory, keepDays int, asOf time.Time) {
	cutoff := asOf.AddDate(0, 0, -keepDays)
	var kept []model.DailyEntry
	for _, e := range mem.DailyEntries {
		d, err := time.Parse("2006-01-02", e.Date)
		if err != nil || !d.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	mem.DailyEntries = kept
}
