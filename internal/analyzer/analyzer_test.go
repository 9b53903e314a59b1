package analyzer

import (
	"testing"
	"time"

	"github.com/aschepis/distill/internal/model"
)

func baseSession() model.Session {
	return model.Session{
		ContentItem: model.ContentItem{
			ID:     "sess-1",
			Source: model.SourceClaudeSession,
		},
		StartedAt: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC),
		ToolUsage: map[string]int{"bash": 3},
	}
}

func TestAnalyzeDurationKnown(t *testing.T) {
	sess := baseSession()
	a := Analyze(sess, nil)
	if a.DurationUnknown {
		t.Fatalf("expected known duration")
	}
	if a.DurationSeconds != 1800 {
		t.Errorf("duration = %d, want 1800", a.DurationSeconds)
	}
}

func TestAnalyzeDurationUnknownWhenTimestampsMissing(t *testing.T) {
	sess := baseSession()
	sess.EndedAt = time.Time{}
	a := Analyze(sess, nil)
	if !a.DurationUnknown {
		t.Fatalf("expected unknown duration when EndedAt is zero")
	}
	if a.DurationSeconds != -1 {
		t.Errorf("duration_seconds = %d, want -1 for unknown", a.DurationSeconds)
	}
}

func TestAnalyzeDurationUnknownWhenNegative(t *testing.T) {
	sess := baseSession()
	sess.EndedAt = sess.StartedAt.Add(-time.Hour)
	a := Analyze(sess, nil)
	if !a.DurationUnknown {
		t.Fatalf("expected unknown duration for negative span")
	}
}

func TestAnalyzeDoesNotMutateToolUsage(t *testing.T) {
	sess := baseSession()
	a := Analyze(sess, nil)
	a.ToolUsage["bash"] = 999
	if sess.ToolUsage["bash"] != 3 {
		t.Errorf("Analyze must not alias the session's ToolUsage map")
	}
}

func TestDeriveTagsDebugging(t *testing.T) {
	sess := baseSession()
	sess.Outcomes = []model.Outcome{
		{Kind: "command_run", Detail: "panic: runtime error"},
	}
	a := Analyze(sess, nil)
	if !containsTag(a.Tags, "debugging") {
		t.Errorf("tags %v missing debugging", a.Tags)
	}
}

func TestDeriveTagsTesting(t *testing.T) {
	sess := baseSession()
	sess.Outcomes = []model.Outcome{
		{Kind: "command_run", Detail: "go test ./..."},
	}
	a := Analyze(sess, nil)
	if !containsTag(a.Tags, "testing") {
		t.Errorf("tags %v missing testing", a.Tags)
	}
}

func TestDeriveTagsDocumentationOnly(t *testing.T) {
	sess := baseSession()
	sess.Outcomes = []model.Outcome{
		{Kind: "file_modified", Detail: "README.md"},
		{Kind: "file_modified", Detail: "docs/guide.txt"},
	}
	a := Analyze(sess, nil)
	if !containsTag(a.Tags, "documentation") {
		t.Errorf("tags %v missing documentation", a.Tags)
	}
	if containsTag(a.Tags, "feature") {
		t.Errorf("tags %v should not contain feature for docs-only session", a.Tags)
	}
}

func TestDeriveTagsAlwaysIncludesSourceAndBase(t *testing.T) {
	sess := baseSession()
	a := Analyze(sess, nil)
	if !containsTag(a.Tags, "ai-session") || !containsTag(a.Tags, string(model.SourceClaudeSession)) {
		t.Errorf("tags %v missing base tags", a.Tags)
	}
}

func TestDeriveProjectExplicitField(t *testing.T) {
	sess := baseSession()
	sess.Project = "distill"
	a := Analyze(sess, nil)
	if a.Project != "distill" {
		t.Errorf("project = %q, want distill", a.Project)
	}
}

func TestDeriveProjectLongestPrefixRoot(t *testing.T) {
	sess := baseSession()
	sess.Outcomes = []model.Outcome{
		{Kind: "file_modified", Detail: "/home/user/code/distill-app/internal/foo.go"},
	}
	roots := KnownProjectRoots{"/home/user/code", "/home/user/code/distill-app"}
	a := Analyze(sess, roots)
	if a.Project != "distill-app" {
		t.Errorf("project = %q, want distill-app (longest matching root)", a.Project)
	}
}

func TestDeriveProjectFallsBackToWorkingDirectory(t *testing.T) {
	sess := baseSession()
	sess.SourceMetadata = map[string]any{"working_directory": "/home/user/code/scratch/"}
	a := Analyze(sess, nil)
	if a.Project != "scratch" {
		t.Errorf("project = %q, want scratch", a.Project)
	}
}

func TestDeriveProjectUnassignedFallback(t *testing.T) {
	sess := baseSession()
	a := Analyze(sess, nil)
	if a.Project != "(unassigned)" {
		t.Errorf("project = %q, want (unassigned)", a.Project)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	sess := baseSession()
	sess.Outcomes = []model.Outcome{{Kind: "file_modified", Detail: "main.go"}}
	a1 := Analyze(sess, nil)
	a2 := Analyze(sess, nil)
	if a1.DurationSeconds != a2.DurationSeconds || len(a1.Tags) != len(a2.Tags) || a1.Project != a2.Project {
		t.Errorf("Analyze is not deterministic: %+v != %+v", a1, a2)
	}
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
