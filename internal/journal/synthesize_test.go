package journal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/distillerr"
	"github.com/aschepis/distill/internal/llm"
)

// stubWorker is a minimal llm.Worker for exercising Synthesize without a
// real backend, in the spirit of the teacher's llm/registry_test.go fakes.
type stubWorker struct {
	responses []string
	calls     int
	timeout   time.Duration
}

func (w *stubWorker) RenderPrompt(system, user string) string { return system + "\n" + user }

func (w *stubWorker) Invoke(ctx context.Context, prompt string) (string, error) {
	w.calls++
	if w.calls > len(w.responses) {
		return "", distillerr.NewRetryable("stub.Invoke", distillerr.ErrLLMTimeout, 0)
	}
	resp := w.responses[w.calls-1]
	if resp == "" {
		return "", nil
	}
	return resp, nil
}

func (w *stubWorker) Timeout() time.Duration { return w.timeout }

func retryCfgForTest() llm.RetryConfig {
	return llm.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, Multiplier: 1}
}

func baseDailyContext(date string) DailyContext {
	return DailyContext{
		Date:              date,
		TotalSessions:     1,
		TotalDurationMins: 45,
		ProjectsWorked:    []string{"alpha"},
		Sessions: []SessionSummary{
			{Time: "09:00", Source: "claude-code", Project: "alpha", Title: "fix bug"},
		},
	}
}

func TestSynthesizeSingleSessionProducesFileWithExpectedFrontmatter(t *testing.T) {
	dir := t.TempDir()
	prose := "# Today\n\n" + strings.Repeat("word ", 220)
	worker := &stubWorker{responses: []string{prose, `{"themes":[],"key_insights":[],"decisions_made":[],"open_questions":[],"threads":[]}`}}
	s := New(dir, worker, retryCfgForTest(), zerolog.Nop())

	ctxData := baseDailyContext("2026-02-08")
	result, err := s.Synthesize(context.Background(), ctxData, "dev-journal", 200, []string{"sess-1"}, false)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.Pending {
		t.Fatalf("expected a successful synthesis, got pending")
	}
	if result.Entry.SessionsCount != 1 || result.Entry.DurationMinutes != 45 {
		t.Errorf("entry = %+v, want sessions_count=1 duration_minutes=45", result.Entry)
	}
	if len(result.Entry.Projects) != 1 || result.Entry.Projects[0] != "alpha" {
		t.Errorf("projects = %v, want [alpha]", result.Entry.Projects)
	}
	if result.Entry.WordCount < 200 {
		t.Errorf("word count = %d, want >= 200", result.Entry.WordCount)
	}

	outPath := filepath.Join(dir, "journal", "journal-2026-02-08-dev-journal.md")
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected the entry to be promoted to %s: %v", outPath, err)
	}
	if !strings.Contains(string(data), "sessions_count: 1") {
		t.Errorf("frontmatter missing sessions_count: %s", string(data))
	}
	if !strings.Contains(string(data), "duration_minutes: 45") {
		t.Errorf("frontmatter missing duration_minutes: %s", string(data))
	}
}

func TestSynthesizeThreeConsecutiveFailuresMarksPendingAndWritesNoFile(t *testing.T) {
	dir := t.TempDir()
	worker := &stubWorker{responses: []string{}} // every Invoke call fails
	s := New(dir, worker, retryCfgForTest(), zerolog.Nop())

	ctxData := baseDailyContext("2026-02-09")
	result, err := s.Synthesize(context.Background(), ctxData, "dev-journal", 200, []string{"sess-1"}, false)
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if !result.Pending {
		t.Errorf("expected Pending=true after all attempts fail")
	}

	outPath := filepath.Join(dir, "journal", "journal-2026-02-09-dev-journal.md")
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Errorf("expected no file written for a fully-failed synthesis, stat err = %v", statErr)
	}
	if !s.cache.isPending("2026-02-09", "dev-journal") {
		t.Errorf("expected the pending flag to be recorded in the cache")
	}

	// A subsequent run for the same date, still pending, should be
	// short-circuited without invoking the worker again.
	callsBefore := worker.calls
	result2, err2 := s.Synthesize(context.Background(), ctxData, "dev-journal", 200, []string{"sess-1"}, false)
	if err2 != nil {
		t.Fatalf("second Synthesize: %v", err2)
	}
	if !result2.Pending {
		t.Errorf("expected the still-pending date to report Pending again")
	}
	if worker.calls != callsBefore {
		t.Errorf("expected no additional worker invocations while pending, calls went from %d to %d", callsBefore, worker.calls)
	}
}

func TestSynthesizeForceRegeneratesEvenWhenCached(t *testing.T) {
	dir := t.TempDir()
	firstProse := "# Today\n\n" + strings.Repeat("word ", 220)
	secondProse := "# Today Again\n\n" + strings.Repeat("changed ", 220)
	worker := &stubWorker{responses: []string{
		firstProse, `{"themes":[],"key_insights":[],"decisions_made":[],"open_questions":[],"threads":[]}`,
		secondProse, `{"themes":[],"key_insights":[],"decisions_made":[],"open_questions":[],"threads":[]}`,
	}}
	s := New(dir, worker, retryCfgForTest(), zerolog.Nop())
	ctxData := baseDailyContext("2026-02-10")

	if _, err := s.Synthesize(context.Background(), ctxData, "dev-journal", 200, []string{"sess-1"}, false); err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	cachedResult, err := s.Synthesize(context.Background(), ctxData, "dev-journal", 200, []string{"sess-1"}, false)
	if err != nil {
		t.Fatalf("cached Synthesize: %v", err)
	}
	if !cachedResult.FromCache {
		t.Fatalf("expected the second call without force to be served from cache")
	}

	forced, err := s.Synthesize(context.Background(), ctxData, "dev-journal", 200, []string{"sess-1"}, true)
	if err != nil {
		t.Fatalf("forced Synthesize: %v", err)
	}
	if forced.FromCache {
		t.Errorf("expected force=true to bypass the cache")
	}
	if !strings.Contains(forced.Entry.BodyMarkdown, "Today Again") {
		t.Errorf("expected the forced regeneration to use the new prose, got %q", forced.Entry.BodyMarkdown)
	}
}
