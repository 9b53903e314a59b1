package blog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aschepis/distill/internal/blogctx"
	"github.com/aschepis/distill/internal/model"
)

// outputPath computes the post type's canonical file path, grounded on
// formatter.py's weekly_output_path/thematic_output_path.
func outputPath(outputDir string, postType model.PostType, slug string) string {
	switch postType {
	case model.PostTypeWeekly:
		return filepath.Join(outputDir, "blog", "weekly", slug+".md")
	case model.PostTypeReadingList:
		return filepath.Join(outputDir, "blog", "reading-list", slug+".md")
	default:
		return filepath.Join(outputDir, "blog", "themes", slug+".md")
	}
}

func buildWeeklyFrontmatter(ctx blogctx.WeeklyContext, tags []string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "date: %s\n", ctx.WeekStart)
	sb.WriteString("type: blog\nblog_type: weekly\n")
	fmt.Fprintf(&sb, "week: %s\n", ctx.ISOWeek)
	fmt.Fprintf(&sb, "sessions_count: %d\n", totalSessions(ctx.Entries))
	fmt.Fprintf(&sb, "duration_minutes: %d\n", totalDuration(ctx.Entries))
	fmt.Fprintf(&sb, "duration_human: %q\n", humanize.RelTime(time.Now(), time.Now().Add(time.Duration(totalDuration(ctx.Entries))*time.Minute), "", ""))
	if len(ctx.Projects) > 0 {
		sb.WriteString("projects:\n")
		for _, p := range ctx.Projects {
			fmt.Fprintf(&sb, "  - %s\n", p)
		}
	}
	sb.WriteString("tags:\n  - blog\n  - weekly\n")
	for _, tag := range uniqueExcluding(tags, "blog", "weekly", 10) {
		fmt.Fprintf(&sb, "  - %s\n", tag)
	}
	if len(ctx.Decisions) > 0 {
		sb.WriteString("decisions:\n")
		for _, d := range ctx.Decisions {
			fmt.Fprintf(&sb, "  - %q\n", d)
		}
	}
	if len(ctx.OpenQuestions) > 0 {
		sb.WriteString("open_questions:\n")
		for _, q := range ctx.OpenQuestions {
			fmt.Fprintf(&sb, "  - %q\n", q)
		}
	}
	fmt.Fprintf(&sb, "created: %s\n", time.Now().UTC().Format(time.RFC3339))
	sb.WriteString("---\n\n")
	return sb.String()
}

func buildThematicFrontmatter(candidate blogctx.ThematicCandidate) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "date: %s\n", time.Now().UTC().Format("2006-01-02"))
	sb.WriteString("type: blog\nblog_type: thematic\n")
	fmt.Fprintf(&sb, "theme: %s\n", candidate.Theme.Slug)
	fmt.Fprintf(&sb, "evidence_days: %d\n", len(candidate.Evidence))
	sb.WriteString("tags:\n  - blog\n  - thematic\n")
	for _, part := range strings.Split(candidate.Theme.Slug, "-") {
		fmt.Fprintf(&sb, "  - %s\n", part)
	}
	fmt.Fprintf(&sb, "created: %s\n", time.Now().UTC().Format(time.RFC3339))
	sb.WriteString("---\n\n")
	return sb.String()
}

func buildReadingListFrontmatter(ctx blogctx.ReadingListContext) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	fmt.Fprintf(&sb, "date: %s\n", ctx.WeekStart)
	sb.WriteString("type: blog\nblog_type: reading-list\n")
	fmt.Fprintf(&sb, "week: %s\n", ctx.ISOWeek)
	fmt.Fprintf(&sb, "items_count: %d\n", len(ctx.Items))
	sb.WriteString("tags:\n  - blog\n  - reading-list\n")
	fmt.Fprintf(&sb, "created: %s\n", time.Now().UTC().Format(time.RFC3339))
	sb.WriteString("---\n\n")
	return sb.String()
}

func sourcesSection(dates []string) string {
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)
	var sb strings.Builder
	sb.WriteString("---\n\n## Sources\n\n")
	for _, d := range sorted {
		label := d
		if t, err := time.Parse("2006-01-02", d); err == nil {
			label = t.Format("Jan 02")
		}
		fmt.Fprintf(&sb, "- [[journal/journal-%s|%s Journal]]\n", d, label)
	}
	sb.WriteString("\n")
	return sb.String()
}

func totalSessions(entries []model.JournalEntry) int {
	total := 0
	for _, e := range entries {
		total += e.SessionsCount
	}
	return total
}

func totalDuration(entries []model.JournalEntry) int {
	total := 0
	for _, e := range entries {
		total += e.DurationMinutes
	}
	return total
}

func uniqueExcluding(tags []string, exclude1, exclude2 string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tags {
		if t == exclude1 || t == exclude2 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	return out
}
