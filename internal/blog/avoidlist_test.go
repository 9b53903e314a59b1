package blog

import (
	"fmt"
	"testing"
	"time"

	"github.com/aschepis/distill/internal/state"
)

func TestBuildAvoidListDedupsAcrossPosts(t *testing.T) {
	mem := state.BlogMemory{Posts: []state.PostSummary{
		{Slug: "p1", Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), KeyPoints: []string{"a", "b"}, ExamplesUsed: []string{"e1"}},
		{Slug: "p2", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), KeyPoints: []string{"b", "c"}, ExamplesUsed: []string{"e1", "e2"}},
	}}
	avoid := BuildAvoidList(mem, 10)
	if len(avoid.KeyPoints) != 3 {
		t.Errorf("key points = %v, want 3 deduped entries", avoid.KeyPoints)
	}
	if len(avoid.Examples) != 2 {
		t.Errorf("examples = %v, want 2 deduped entries", avoid.Examples)
	}
}

func TestBuildAvoidListRespectsMLimit(t *testing.T) {
	var posts []state.PostSummary
	for i := 0; i < 15; i++ {
		posts = append(posts, state.PostSummary{
			Slug:      "p",
			Date:      time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
			KeyPoints: []string{fmt.Sprintf("point-%d", i)},
		})
	}
	mem := state.BlogMemory{Posts: posts}
	avoid := BuildAvoidList(mem, 5)
	if len(avoid.KeyPoints) != 5 {
		t.Errorf("expected key points from only the 5 most recent posts, got %v", avoid.KeyPoints)
	}
}

func TestRenderForPromptEmptyWhenNothingToAvoid(t *testing.T) {
	if got := (AvoidList{}).RenderForPrompt(); got != "" {
		t.Errorf("RenderForPrompt() = %q, want empty string for an empty avoid list", got)
	}
}

func TestRenderForPromptIncludesExamplesSection(t *testing.T) {
	avoid := AvoidList{Examples: []string{"the bug where X happened"}}
	rendered := avoid.RenderForPrompt()
	if rendered == "" {
		t.Fatalf("expected non-empty rendering")
	}
	if !contains(rendered, "DO NOT REUSE") {
		t.Errorf("rendered avoid list missing DO NOT REUSE section: %q", rendered)
	}
}

func TestExtractKeyPointsAndExamples(t *testing.T) {
	prose := "# Title\n\n## First section\nThis is the key point. More detail follows.\n\n" +
		"## Second section\nAnother point here without punctuation that runs long"
	keyPoints, _ := ExtractKeyPointsAndExamples(prose)
	if len(keyPoints) != 2 {
		t.Fatalf("expected 2 key points from 2 sections, got %v", keyPoints)
	}
	if keyPoints[0] != "This is the key point." {
		t.Errorf("key point = %q, want first sentence of section", keyPoints[0])
	}
}

func TestExtractExamplesFromQuotedSnippets(t *testing.T) {
	prose := `Body text with "a specific quoted example that is long enough" embedded in it.`
	_, examples := ExtractKeyPointsAndExamples(prose)
	if len(examples) != 1 || examples[0] != "a specific quoted example that is long enough" {
		t.Errorf("examples = %v, want the quoted snippet extracted", examples)
	}
}

func TestOverlapRatioThreshold(t *testing.T) {
	avoid := AvoidList{KeyPoints: []string{"Reused Point"}}
	ratio := OverlapRatio([]string{"reused point", "fresh point"}, avoid)
	if ratio != 0.5 {
		t.Errorf("OverlapRatio = %v, want 0.5", ratio)
	}
}

func TestOverlapRatioZeroForEmptyCandidates(t *testing.T) {
	if got := OverlapRatio(nil, AvoidList{KeyPoints: []string{"x"}}); got != 0 {
		t.Errorf("OverlapRatio(nil, ...) = %v, want 0", got)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
