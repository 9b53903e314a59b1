package blogctx

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aschepis/distill/internal/contentstore"
	"github.com/aschepis/distill/internal/model"
)

// ReadingListItem is one curated entry in a reading-list post.
type ReadingListItem struct {
	Title     string
	URL       string
	Author    string
	Site      string
	Excerpt   string
	Tags      []string
	Relevance float64
}

// ReadingListContext is the input to a "reading-list" BlogPost, built from
// intake items published during one ISO week, grounded on
// original_source/src/blog/reading_list.py.
type ReadingListContext struct {
	ISOWeek        string
	WeekStart      string
	WeekEnd        string
	Items          []ReadingListItem
	TotalItemsRead int
	Themes         []string
}

// BuildReadingListContext queries store for content items whose
// PublishedAt falls in the ISO week containing anyDateInWeek, ranks them by
// relevance classification metadata, and returns the top maxItems. Returns
// (context, false) if no items were found for the week.
func BuildReadingListContext(ctx context.Context, store *contentstore.Store, mem model.UnifiedMemory, anyDateInWeek time.Time, maxItems int) (ReadingListContext, bool, error) {
	weekStart, weekEnd, isoWeek := isoWeekBounds(anyDateInWeek)

	var items []model.ContentItem
	for d := weekStart; !d.After(weekEnd); d = d.AddDate(0, 0, 1) {
		dayItems, err := store.FindByDateBucket(ctx, d.Format("2006-01-02"))
		if err != nil {
			return ReadingListContext{}, false, fmt.Errorf("blogctx: query reading list items: %w", err)
		}
		items = append(items, dayItems...)
	}
	if len(items) == 0 {
		return ReadingListContext{}, false, nil
	}

	type scored struct {
		item      model.ContentItem
		relevance float64
	}
	ranked := make([]scored, 0, len(items))
	for _, item := range items {
		ranked = append(ranked, scored{item: item, relevance: relevanceOf(item)})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].relevance > ranked[j].relevance })
	if len(ranked) > maxItems {
		ranked = ranked[:maxItems]
	}

	var out []ReadingListItem
	for _, r := range ranked {
		out = append(out, ReadingListItem{
			Title:     r.item.Title,
			URL:       r.item.URL,
			Author:    r.item.Author,
			Site:      r.item.SiteName,
			Excerpt:   truncate(r.item.Excerpt, 200),
			Tags:      limitStrings(r.item.Tags, 5),
			Relevance: r.relevance,
		})
	}

	var themes []string
	seen := make(map[string]bool)
	for _, e := range mem.DailyEntries {
		d, err := time.Parse("2006-01-02", e.Date)
		if err != nil || d.Before(weekStart) || d.After(weekEnd) {
			continue
		}
		for _, t := range e.Themes {
			if !seen[t] {
				seen[t] = true
				themes = append(themes, t)
			}
		}
	}
	if len(themes) > 10 {
		themes = themes[:10]
	}

	return ReadingListContext{
		ISOWeek:        isoWeek,
		WeekStart:      weekStart.Format("2006-01-02"),
		WeekEnd:        weekEnd.Format("2006-01-02"),
		Items:          out,
		TotalItemsRead: len(items),
		Themes:         themes,
	}, true, nil
}

// relevanceOf reads a "classification.relevance" float out of Metadata, per
// original_source's scored_items sort key, defaulting to 0.5.
func relevanceOf(item model.ContentItem) float64 {
	classification, ok := item.Metadata["classification"].(map[string]any)
	if !ok {
		return 0.5
	}
	switch v := classification["relevance"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0.5
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n])
}

func limitStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// RenderPrompt renders the context as prompt text for the LLM, grounded on
// original_source's render_reading_list_prompt.
func (c ReadingListContext) RenderPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Reading List: Week %s\n", c.ISOWeek)
	fmt.Fprintf(&sb, "(%s to %s)\n\n", c.WeekStart, c.WeekEnd)
	fmt.Fprintf(&sb, "Total articles read: %d\n", c.TotalItemsRead)
	fmt.Fprintf(&sb, "Top %d curated below:\n\n", len(c.Items))

	for i, item := range c.Items {
		attribution := ""
		if item.Author != "" {
			attribution = " by " + item.Author
		} else if item.Site != "" {
			attribution = " (" + item.Site + ")"
		}
		fmt.Fprintf(&sb, "## %d. %s%s\n", i+1, item.Title, attribution)
		if item.Excerpt != "" {
			fmt.Fprintf(&sb, "> %s\n", item.Excerpt)
		}
		if len(item.Tags) > 0 {
			fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(item.Tags, ", "))
		}
		sb.WriteString("\n")
	}

	if len(c.Themes) > 0 {
		fmt.Fprintf(&sb, "Weekly themes: %s\n\n", strings.Join(c.Themes, ", "))
	}

	return sb.String()
}
