package blogctx

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aschepis/distill/internal/model"
)

// WeeklyContext is the input to the Blog Synthesizer for a "weekly" post,
// built from every JournalEntry in one ISO week (spec.md §4.6).
type WeeklyContext struct {
	ISOWeek         string
	WeekStart       string
	WeekEnd         string
	Projects        []string
	Themes          []string
	RecurringTopics []string
	Decisions       []string
	OpenQuestions   []string
	Entries         []model.JournalEntry
}

// BuildWeeklyContext gathers entries, active memory threads, and recurring
// sub-topics for the ISO week containing anyDateInWeek. It returns
// (context, false) if fewer than minJournals entries exist for the week,
// per spec.md §4.6's skip rule.
func BuildWeeklyContext(entries []model.JournalEntry, threads map[string]model.MemoryThread, anyDateInWeek time.Time, minJournals int) (WeeklyContext, bool) {
	weekStart, weekEnd, isoWeek := isoWeekBounds(anyDateInWeek)

	var inWeek []model.JournalEntry
	for _, e := range entries {
		d, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			continue
		}
		if !d.Before(weekStart) && !d.After(weekEnd) {
			inWeek = append(inWeek, e)
		}
	}
	if len(inWeek) < minJournals {
		return WeeklyContext{}, false
	}

	projects := unionStrings(func(yield func(string)) {
		for _, e := range inWeek {
			for _, p := range e.Projects {
				yield(p)
			}
		}
	})

	var themeNames []string
	for _, t := range threads {
		lastSeen, err := time.Parse("2006-01-02", t.LastSeen)
		if err != nil {
			continue
		}
		if !lastSeen.Before(weekStart) && !lastSeen.After(weekEnd) {
			themeNames = append(themeNames, t.Name)
		}
	}
	sort.Strings(themeNames)

	recurring := recurringSubTopics(inWeek)

	decisions := unionStrings(func(yield func(string)) {
		// Decisions aren't modeled as a JournalEntry field directly — they
		// are mined by the extraction pass and threaded through the
		// caller's memory lookups. Entry tags carrying "decision:" prefix
		// are treated as decisions here.
		for _, e := range inWeek {
			for _, tag := range e.Tags {
				if strings.HasPrefix(tag, "decision:") {
					yield(strings.TrimPrefix(tag, "decision:"))
				}
			}
		}
	})

	openQuestions := unionStrings(func(yield func(string)) {
		// Same tagging convention as decisions, with an "open-question:"
		// prefix, per spec.md §4.6's weekly-context "list of open questions".
		for _, e := range inWeek {
			for _, tag := range e.Tags {
				if strings.HasPrefix(tag, "open-question:") {
					yield(strings.TrimPrefix(tag, "open-question:"))
				}
			}
		}
	})

	return WeeklyContext{
		ISOWeek:         isoWeek,
		WeekStart:       weekStart.Format("2006-01-02"),
		WeekEnd:         weekEnd.Format("2006-01-02"),
		Projects:        projects,
		Themes:          themeNames,
		RecurringTopics: recurring,
		Decisions:       decisions,
		OpenQuestions:   openQuestions,
		Entries:         inWeek,
	}, true
}

// recurringSubTopics returns tags appearing in at least 2 entries of the
// week, per spec.md §4.6: "recurring sub-topics (strings appearing in ≥2
// journals of W)".
func recurringSubTopics(entries []model.JournalEntry) []string {
	counts := make(map[string]int)
	for _, e := range entries {
		seen := make(map[string]bool)
		for _, tag := range e.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			counts[tag]++
		}
	}
	var out []string
	for tag, n := range counts {
		if n >= 2 {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

func unionStrings(iterate func(yield func(string))) []string {
	seen := make(map[string]bool)
	var out []string
	iterate(func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	})
	sort.Strings(out)
	return out
}

func isoWeekBounds(t time.Time) (start, end time.Time, iso string) {
	year, week := t.ISOWeek()
	// ISO weeks start on Monday; walk back to the week's Monday.
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start = t.AddDate(0, 0, -(weekday - 1))
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 0, 6)
	return start, end, isoWeekString(year, week)
}

func isoWeekString(year, week int) string {
	return fmt.Sprintf("%d-W%02d", year, week)
}
