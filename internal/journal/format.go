package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// stripChrome drops any text before the first top-level markdown heading,
// per spec.md §4.5 step 1 — LLMs often preface output with throat-clearing
// ("Here's your journal entry:") that should never reach the file.
func stripChrome(prose string) string {
	lines := strings.Split(prose, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "# ") {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return strings.TrimSpace(prose)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// withinTolerance reports whether actual is within ±50% of target, per
// spec.md §4.5 step 2.
func withinTolerance(actual, target int) bool {
	if target <= 0 {
		return true
	}
	lower := target / 2
	upper := target + target/2
	return actual >= lower && actual <= upper
}

// buildFrontmatter renders the YAML frontmatter block, grounded on
// original_source/src/journal/formatter.py's _build_frontmatter.
func buildFrontmatter(ctx DailyContext, style string, generatedAt time.Time) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "date: %s\n", ctx.Date)
	sb.WriteString("type: journal\n")
	fmt.Fprintf(&sb, "style: %s\n", style)
	fmt.Fprintf(&sb, "sessions_count: %d\n", ctx.TotalSessions)
	fmt.Fprintf(&sb, "duration_minutes: %d\n", ctx.TotalDurationMins)
	fmt.Fprintf(&sb, "duration_human: %q\n", humanize.RelTime(time.Now(), time.Now().Add(time.Duration(ctx.TotalDurationMins)*time.Minute), "", ""))

	sb.WriteString("tags:\n  - journal\n")
	for _, tag := range limitStrings(ctx.Tags, 10) {
		fmt.Fprintf(&sb, "  - %s\n", tag)
	}

	if len(ctx.ProjectsWorked) > 0 {
		sb.WriteString("projects:\n")
		for _, p := range ctx.ProjectsWorked {
			fmt.Fprintf(&sb, "  - %s\n", p)
		}
	}

	fmt.Fprintf(&sb, "generated_at: %s\n", generatedAt.Format(time.RFC3339))
	sb.WriteString("---\n\n")
	return sb.String()
}

// renderEntry assembles the final markdown file body: frontmatter + the
// synthesized prose, with a diagnostic note appended if length tolerance
// could not be met after the retry.
func renderEntry(ctx DailyContext, style string, prose string, generatedAt time.Time, lengthDiagnostic bool) string {
	var sb strings.Builder
	sb.WriteString(buildFrontmatter(ctx, style, generatedAt))
	sb.WriteString(prose)
	sb.WriteString("\n")
	if lengthDiagnostic {
		sb.WriteString("\n<!-- diagnostic: generated length fell outside target tolerance after retry -->\n")
	}
	return sb.String()
}
