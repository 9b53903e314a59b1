package memory

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aschepis/distill/internal/model"
)

// RenderForPrompt renders a markdown excerpt of mem for inclusion in an LLM
// prompt, grounded on original_source/src/memory.py's render_for_prompt:
// the last 7 daily entries, active threads, the top 10 entities by mention
// count, and recently-published posts.
func RenderForPrompt(mem model.UnifiedMemory) string {
	var sb strings.Builder

	recent := lastN(mem.DailyEntries, 7)
	if len(recent) > 0 {
		sb.WriteString("## Recent days\n")
		for _, e := range recent {
			sb.WriteString(fmt.Sprintf("- %s: themes=%s, insights=%s\n", e.Date, strings.Join(e.Themes, ", "), strings.Join(e.Insights, "; ")))
		}
		sb.WriteString("\n")
	}

	active := activeThreads(mem.Threads)
	if len(active) > 0 {
		sb.WriteString("## Active threads\n")
		for _, t := range active {
			sb.WriteString(fmt.Sprintf("- %s (mentioned %d times, last seen %s): %s\n", t.Name, t.MentionCount, t.LastSeen, t.Summary))
		}
		sb.WriteString("\n")
	}

	topEntities := topEntitiesByMentions(mem.Entities, 10)
	if len(topEntities) > 0 {
		sb.WriteString("## Frequently mentioned entities\n")
		for _, e := range topEntities {
			sb.WriteString(fmt.Sprintf("- %s (%s), mentioned %d times\n", e.Name, e.EntityType, e.MentionCount))
		}
		sb.WriteString("\n")
	}

	published := lastN(mem.Published, 5)
	if len(published) > 0 {
		sb.WriteString("## Recently published\n")
		for _, p := range published {
			sb.WriteString(fmt.Sprintf("- %s (%s, %s): %s\n", p.Title, p.PostType, p.Date, strings.Join(p.Platforms, ", ")))
		}
	}

	return sb.String()
}

// ActiveThreadsSince returns threads whose LastSeen falls within the last
// windowDays of asOf, used to build the DailyContext's "active threads"
// field (spec.md §4.5).
func ActiveThreadsSince(mem model.UnifiedMemory, windowDays int, asOf time.Time) []model.MemoryThread {
	cutoff := asOf.AddDate(0, 0, -windowDays)
	var out []model.MemoryThread
	for _, t := range mem.Threads {
		seen, err := time.Parse("2006-01-02", t.LastSeen)
		if err != nil || seen.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func activeThreads(threads map[string]model.MemoryThread) []model.MemoryThread {
	var out []model.MemoryThread
	for _, t := range threads {
		if t.Status == model.ThreadActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MentionCount != out[j].MentionCount {
			return out[i].MentionCount > out[j].MentionCount
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func topEntitiesByMentions(entities map[string]model.EntityRecord, n int) []model.EntityRecord {
	out := make([]model.EntityRecord, 0, len(entities))
	for _, e := range entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MentionCount != out[j].MentionCount {
			return out[i].MentionCount > out[j].MentionCount
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
