package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, ".distill-memory"), "", zerolog.Nop())
}

func TestLoadWithoutFileReturnsEmptyMemory(t *testing.T) {
	s := newTestStore(t)
	mem, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mem.DailyEntries) != 0 || len(mem.Threads) != 0 || len(mem.Entities) != 0 {
		t.Errorf("expected empty memory, got %+v", mem)
	}
}

func TestCommitLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	mem := model.NewUnifiedMemory()
	RecordDaily(&mem, "2026-01-01", []string{"s1"}, nil, []string{"theme"}, []string{"insight"}, nil, nil)
	UpdateThreads(&mem, []string{"theme"}, "2026-01-01", map[string]string{"theme": "summary"})

	if err := s.Commit(mem); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	reloaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reloaded.DailyEntries) != 1 || reloaded.DailyEntries[0].Date != "2026-01-01" {
		t.Fatalf("daily entries did not round-trip: %+v", reloaded.DailyEntries)
	}
	if reloaded.Threads["theme"].MentionCount != 1 {
		t.Errorf("thread did not round-trip: %+v", reloaded.Threads["theme"])
	}
}

func TestCommitOfLoadedMemoryIsNoOp(t *testing.T) {
	s := newTestStore(t)
	mem := model.NewUnifiedMemory()
	RecordDaily(&mem, "2026-01-01", []string{"s1"}, nil, nil, nil, nil, nil)
	if err := s.Commit(mem); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Commit(loaded); err != nil {
		t.Fatalf("second Commit: %v", err)
	}
	reloaded, err := s.Load()
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if len(reloaded.DailyEntries) != len(loaded.DailyEntries) {
		t.Errorf("commit(load()) was not a no-op: %+v vs %+v", reloaded.DailyEntries, loaded.DailyEntries)
	}
}

func TestSnapshotIsIndependentOfLiveMutation(t *testing.T) {
	mem := model.NewUnifiedMemory()
	UpdateThreads(&mem, []string{"theme"}, "2026-01-01", map[string]string{"theme": "v1"})

	snap := Snapshot(mem)

	UpdateThreads(&mem, []string{"theme"}, "2026-01-02", map[string]string{"theme": "v2"})
	RecordDaily(&mem, "2026-01-02", []string{"s2"}, nil, nil, nil, nil, nil)

	if snap.Threads["theme"].Summary != "v1" {
		t.Errorf("snapshot observed a later mutation: %+v", snap.Threads["theme"])
	}
	if len(snap.DailyEntries) != 0 {
		t.Errorf("snapshot observed daily entries added after it was taken: %+v", snap.DailyEntries)
	}
}

func TestRecordDailyReplacesSameDateEntry(t *testing.T) {
	mem := model.NewUnifiedMemory()
	RecordDaily(&mem, "2026-01-01", []string{"s1"}, nil, nil, nil, nil, nil)
	RecordDaily(&mem, "2026-01-01", []string{"s1", "s2"}, nil, nil, nil, nil, nil)

	if len(mem.DailyEntries) != 1 {
		t.Fatalf("expected a single entry for the date, got %d", len(mem.DailyEntries))
	}
	if len(mem.DailyEntries[0].SessionIDs) != 2 {
		t.Errorf("expected the replacement entry's session ids, got %+v", mem.DailyEntries[0].SessionIDs)
	}
}

func TestUpdateThreadsIncrementsMentionCount(t *testing.T) {
	mem := model.NewUnifiedMemory()
	UpdateThreads(&mem, []string{"topic"}, "2026-01-01", map[string]string{"topic": "s"})
	UpdateThreads(&mem, []string{"topic"}, "2026-01-02", map[string]string{"topic": "s"})

	thread := mem.Threads["topic"]
	if thread.MentionCount != 2 {
		t.Errorf("mention_count = %d, want 2", thread.MentionCount)
	}
	if thread.LastSeen != "2026-01-02" {
		t.Errorf("last_seen = %q, want 2026-01-02", thread.LastSeen)
	}
	if thread.Status != model.ThreadActive {
		t.Errorf("status = %q, want active", thread.Status)
	}
}

func TestUpdateThreadsMarksDormantAfterWindow(t *testing.T) {
	mem := model.NewUnifiedMemory()
	UpdateThreads(&mem, []string{"topic"}, "2026-01-01", map[string]string{"topic": "s"})

	future := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, DormancyDays+1).Format("2006-01-02")
	UpdateThreads(&mem, nil, future, nil)

	if mem.Threads["topic"].Status != model.ThreadDormant {
		t.Errorf("thread should be dormant after %d days of silence, got %+v", DormancyDays, mem.Threads["topic"])
	}
}

func TestPruneDropsEntriesOlderThanWindow(t *testing.T) {
	mem := model.NewUnifiedMemory()
	RecordDaily(&mem, "2026-01-01", nil, nil, nil, nil, nil, nil)
	RecordDaily(&mem, "2026-02-01", nil, nil, nil, nil, nil, nil)

	Prune(&mem, 10, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	if len(mem.DailyEntries) != 1 || mem.DailyEntries[0].Date != "2026-02-01" {
		t.Errorf("expected only the recent entry to survive pruning, got %+v", mem.DailyEntries)
	}
}

func TestUpdateEntitiesCapsContextsAtMax(t *testing.T) {
	mem := model.NewUnifiedMemory()
	for i := 0; i < MaxEntityContexts+5; i++ {
		UpdateEntities(&mem, map[string]string{"Alice": "person"}, "2026-01-01", "context")
	}
	key := "person:alice"
	if len(mem.Entities[key].Contexts) != MaxEntityContexts {
		t.Errorf("contexts = %d, want capped at %d", len(mem.Entities[key].Contexts), MaxEntityContexts)
	}
	if mem.Entities[key].MentionCount != MaxEntityContexts+5 {
		t.Errorf("mention_count = %d, want %d", mem.Entities[key].MentionCount, MaxEntityContexts+5)
	}
}
