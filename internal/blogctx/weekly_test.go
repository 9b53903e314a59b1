package blogctx

import (
	"testing"
	"time"

	"github.com/aschepis/distill/internal/model"
)

func TestBuildWeeklyContextSkipsBelowMinJournals(t *testing.T) {
	entries := []model.JournalEntry{
		entryOn("2026-03-02", "monday entry"),
	}
	_, ok := BuildWeeklyContext(entries, nil, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 2)
	if ok {
		t.Errorf("expected the week to be skipped when fewer than minJournals entries exist")
	}
}

func TestBuildWeeklyContextIncludesDecisionsAndOpenQuestions(t *testing.T) {
	entries := []model.JournalEntry{
		entryOn("2026-03-02", "entry", "decision:use postgres", "open-question:should we shard?"),
		entryOn("2026-03-03", "entry2", "decision:use postgres", "open-question:cache layer needed?"),
	}
	ctx, ok := BuildWeeklyContext(entries, nil, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 2)
	if !ok {
		t.Fatalf("expected the week to qualify")
	}
	if len(ctx.Decisions) != 1 || ctx.Decisions[0] != "use postgres" {
		t.Errorf("decisions = %v, want deduped [use postgres]", ctx.Decisions)
	}
	if len(ctx.OpenQuestions) != 2 {
		t.Errorf("open_questions = %v, want 2 distinct entries", ctx.OpenQuestions)
	}
}

func TestBuildWeeklyContextOpenQuestionsEmptyWhenNoneTagged(t *testing.T) {
	entries := []model.JournalEntry{
		entryOn("2026-03-02", "entry", "decision:ship it"),
		entryOn("2026-03-03", "entry2"),
	}
	ctx, ok := BuildWeeklyContext(entries, nil, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 2)
	if !ok {
		t.Fatalf("expected the week to qualify")
	}
	if len(ctx.OpenQuestions) != 0 {
		t.Errorf("expected no open questions, got %v", ctx.OpenQuestions)
	}
}

func TestBuildWeeklyContextRecurringSubTopics(t *testing.T) {
	entries := []model.JournalEntry{
		entryOn("2026-03-02", "entry", "refactor"),
		entryOn("2026-03-03", "entry2", "refactor"),
		entryOn("2026-03-04", "entry3", "one-off"),
	}
	ctx, ok := BuildWeeklyContext(entries, nil, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 2)
	if !ok {
		t.Fatalf("expected the week to qualify")
	}
	if len(ctx.RecurringTopics) != 1 || ctx.RecurringTopics[0] != "refactor" {
		t.Errorf("recurring topics = %v, want [refactor] (appearing in >=2 journals)", ctx.RecurringTopics)
	}
}
