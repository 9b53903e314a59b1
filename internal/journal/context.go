// Package journal implements the Journal Synthesizer (spec.md §4.5, C5):
// builds a DailyContext from a day's analyzed sessions and rolling memory,
// delegates prose generation to an LLM worker, then enforces length,
// attaches frontmatter, and commits the result atomically. Grounded on
// original_source/src/journal/{context,cache,formatter,prompts,synthesizer}.py.
package journal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aschepis/distill/internal/analyzer"
	"github.com/aschepis/distill/internal/config"
	"github.com/aschepis/distill/internal/memory"
	"github.com/aschepis/distill/internal/model"
)

// SessionSummary is one session's compact, LLM-ready digest.
type SessionSummary struct {
	Time            string
	DurationMinutes int
	DurationUnknown bool
	Source          string
	Project         string
	Title           string
	Outcomes        []string
	TopTools        []string
	Tags            []string
	Learnings       []string
	Signals         []string
}

// DailyContext is the compressed input handed to the LLM worker, per
// spec.md §4.5's "Context construction" paragraph.
type DailyContext struct {
	Date               string
	TotalSessions      int
	TotalDurationMins  int
	ProjectsWorked     []string
	Sessions           []SessionSummary
	KeyOutcomes        []string
	Tags               []string
	ActiveThreads      []model.MemoryThread
	EntitiesYesterday  []model.EntityRecord
	EditorialNotes     []string
	UnusedSeeds        []string
	ProjectDescriptors []config.ProjectDescriptor
}

// BuildDailyContext compresses a day's sessions plus rolling memory into a
// DailyContext, following original_source's prepare_daily_context.
func BuildDailyContext(
	date string,
	sessions []model.Session,
	analyses map[string]analyzer.Analysis,
	mem model.UnifiedMemory,
	yesterdayEntities []model.EntityRecord,
	notes []model.EditorialNote,
	seeds []model.Seed,
	projects []config.ProjectDescriptor,
	asOf time.Time,
) DailyContext {
	sorted := append([]model.Session(nil), sessions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartedAt.Before(sorted[j].StartedAt) })

	var summaries []SessionSummary
	var projectsWorked []string
	seenProjects := make(map[string]bool)
	var allOutcomes []string
	seenOutcomes := make(map[string]bool)
	var allTags []string
	seenTags := make(map[string]bool)

	for _, sess := range sorted {
		a := analyses[sess.ID]
		summary := SessionSummary{
			Time:            sess.StartedAt.Format("15:04"),
			DurationUnknown: a.DurationUnknown,
			Source:          string(sess.Source),
			Project:         a.Project,
			Title:           sess.Title,
			TopTools:        topTools(a.ToolUsage, 3),
			Tags:            limitStrings(a.Tags, 10),
			Learnings:       limitStrings(sess.Learnings, 5),
		}
		if !a.DurationUnknown {
			summary.DurationMinutes = int(a.DurationSeconds / 60)
		}
		for _, o := range sess.Outcomes {
			if o.Detail == "" {
				continue
			}
			summary.Outcomes = append(summary.Outcomes, o.Detail)
			if !seenOutcomes[o.Detail] {
				seenOutcomes[o.Detail] = true
				allOutcomes = append(allOutcomes, o.Detail)
			}
		}
		summary.Outcomes = limitStrings(summary.Outcomes, 5)
		for _, sig := range sess.AgentSignals {
			if sig.Signal != "" {
				summary.Signals = append(summary.Signals, sig.Signal)
			}
		}
		summaries = append(summaries, summary)

		if a.Project != "" && a.Project != "(unassigned)" && !seenProjects[a.Project] {
			seenProjects[a.Project] = true
			projectsWorked = append(projectsWorked, a.Project)
		}
		for _, tag := range a.Tags {
			if !seenTags[tag] {
				seenTags[tag] = true
				allTags = append(allTags, tag)
			}
		}
	}

	totalMinutes := 0
	for _, s := range summaries {
		totalMinutes += s.DurationMinutes
	}

	var relevantDescriptors []config.ProjectDescriptor
	for _, p := range projects {
		if seenProjects[p.Name] {
			relevantDescriptors = append(relevantDescriptors, p)
		}
	}

	isoWeek := isoWeekOf(date)
	var noteTexts []string
	for _, n := range notes {
		if n.Used {
			continue
		}
		if n.MatchesTarget(isoWeek, "") {
			noteTexts = append(noteTexts, n.Text)
		}
	}

	var seedTexts []string
	for _, seed := range seeds {
		if !seed.Used {
			seedTexts = append(seedTexts, seed.Text)
		}
	}

	return DailyContext{
		Date:               date,
		TotalSessions:      len(summaries),
		TotalDurationMins:  totalMinutes,
		ProjectsWorked:     projectsWorked,
		Sessions:           summaries,
		KeyOutcomes:        limitStrings(allOutcomes, 15),
		Tags:               limitStrings(allTags, 20),
		ActiveThreads:      memory.ActiveThreadsSince(mem, 7, asOf),
		EntitiesYesterday:  yesterdayEntities,
		EditorialNotes:     noteTexts,
		UnusedSeeds:        seedTexts,
		ProjectDescriptors: relevantDescriptors,
	}
}

// RenderText renders the DailyContext as structured plain text for the
// LLM prompt, following original_source's DailyContext.render_text.
func (c DailyContext) RenderText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily Session Context: %s\n\n", c.Date)
	fmt.Fprintf(&sb, "Sessions: %d\n", c.TotalSessions)
	fmt.Fprintf(&sb, "Total time: %d minutes\n", c.TotalDurationMins)
	if len(c.ProjectsWorked) > 0 {
		fmt.Fprintf(&sb, "Projects: %s\n", strings.Join(c.ProjectsWorked, ", "))
	}
	sb.WriteString("\n")

	for i, s := range c.Sessions {
		fmt.Fprintf(&sb, "## Session %d (%s, %s)\n", i+1, s.Time, s.Source)
		if s.Project != "" {
			fmt.Fprintf(&sb, "Project: %s\n", s.Project)
		}
		if !s.DurationUnknown {
			fmt.Fprintf(&sb, "Duration: %dmin\n", s.DurationMinutes)
		}
		if s.Title != "" {
			fmt.Fprintf(&sb, "Summary: %s\n", s.Title)
		}
		if len(s.Outcomes) > 0 {
			sb.WriteString("Outcomes:\n")
			for _, o := range s.Outcomes {
				fmt.Fprintf(&sb, "  - %s\n", o)
			}
		}
		if len(s.TopTools) > 0 {
			fmt.Fprintf(&sb, "Tools: %s\n", strings.Join(s.TopTools, ", "))
		}
		if len(s.Learnings) > 0 {
			sb.WriteString("Learnings:\n")
			for _, l := range s.Learnings {
				fmt.Fprintf(&sb, "  - %s\n", l)
			}
		}
		if len(s.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(s.Tags, ", "))
		}
		sb.WriteString("\n")
	}

	if len(c.KeyOutcomes) > 0 {
		sb.WriteString("## Key Outcomes\n")
		for _, o := range c.KeyOutcomes {
			fmt.Fprintf(&sb, "- %s\n", o)
		}
		sb.WriteString("\n")
	}

	if len(c.ActiveThreads) > 0 {
		sb.WriteString("## Ongoing threads\n")
		for _, t := range c.ActiveThreads {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Name, t.Summary)
		}
		sb.WriteString("\n")
	}

	if len(c.EntitiesYesterday) > 0 {
		sb.WriteString("## Mentioned yesterday\n")
		for _, e := range c.EntitiesYesterday {
			fmt.Fprintf(&sb, "- %s (%s)\n", e.Name, e.EntityType)
		}
		sb.WriteString("\n")
	}

	if len(c.EditorialNotes) > 0 {
		sb.WriteString("## Editorial notes\n")
		for _, n := range c.EditorialNotes {
			fmt.Fprintf(&sb, "- %s\n", n)
		}
		sb.WriteString("\n")
	}

	if len(c.UnusedSeeds) > 0 {
		sb.WriteString("## Seed ideas\n")
		for _, s := range c.UnusedSeeds {
			fmt.Fprintf(&sb, "- %s\n", s)
		}
		sb.WriteString("\n")
	}

	if len(c.ProjectDescriptors) > 0 {
		sb.WriteString("## Project context\n")
		for _, p := range c.ProjectDescriptors {
			fmt.Fprintf(&sb, "- %s: %s\n", p.Name, p.Description)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func topTools(usage map[string]int, n int) []string {
	type kv struct {
		name  string
		count int
	}
	kvs := make([]kv, 0, len(usage))
	for k, v := range usage {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].name < kvs[j].name
	})
	if len(kvs) > n {
		kvs = kvs[:n]
	}
	out := make([]string, len(kvs))
	for i, k := range kvs {
		out[i] = k.name
	}
	return out
}

func limitStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func isoWeekOf(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
