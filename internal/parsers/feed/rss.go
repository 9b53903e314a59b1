// Package feed implements the external content parsers (spec.md §4.1): RSS
// 2.0 feeds today (Atom is not parsed), following the same {discover, parse} contract as the
// session dialects so the Normalizer treats every source uniformly.
// Grounded on original_source/src/intake/parsers/rss.py (defaults to a
// configurable lookback window, dedups same-URL entries keeping the fuller
// body) and rubicon-ClaraVerse's scraper stack for fetch/extract/robots.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/markusmobius/go-trafilatura"
	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

const userAgent = "distill-bot/1.0 (+https://github.com/aschepis/distill)"

// rssFeed and rssItem model the subset of RSS 2.0 this parser reads;
// Atom's <entry>/<updated> would need a second unmarshal target, added
// when a real Atom source is configured.
type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
	Author      string `xml:"author"`
}

// RSSParser reads one or more configured feed URLs.
type RSSParser struct {
	Feeds      []string
	MaxAgeDays int
	client     *http.Client
	robots     *robotsChecker
	logger     zerolog.Logger
}

// NewRSSParser creates an RSSParser for the given feed URLs.
func NewRSSParser(feeds []string, maxAgeDays int, logger zerolog.Logger) *RSSParser {
	if maxAgeDays <= 0 {
		maxAgeDays = 2
	}
	return &RSSParser{
		Feeds:      feeds,
		MaxAgeDays: maxAgeDays,
		client:     &http.Client{Timeout: 30 * time.Second},
		robots:     newRobotsChecker(userAgent),
		logger:     logger.With().Str("component", "parsers.feed.rss").Logger(),
	}
}

// Discover returns the configured feed URLs as-is; there is no filesystem
// root to walk for a network source.
func (p *RSSParser) Discover() []string {
	return p.Feeds
}

// Parse fetches and parses one feed URL, returning ContentItems within the
// configured lookback window, deduplicated by URL (keeping the entry with
// the most content, per original_source's _dedup_by_url).
func (p *RSSParser) Parse(ctx context.Context, feedURL string) ([]model.ContentItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: fetch %s: status %d", feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("feed: read %s: %w", feedURL, err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("feed: parse xml %s: %w", feedURL, err)
	}

	cutoff := time.Now().AddDate(0, 0, -p.MaxAgeDays)
	var items []model.ContentItem
	for _, it := range feed.Channel.Items {
		published, perr := dateparse.ParseAny(it.PubDate)
		if perr == nil && published.Before(cutoff) {
			continue
		}

		item := model.ContentItem{
			Source:      model.SourceRSS,
			ContentType: model.ContentTypeArticle,
			Title:       strings.TrimSpace(it.Title),
			URL:         strings.TrimSpace(it.Link),
			Author:      it.Author,
			Excerpt:     strings.TrimSpace(it.Description),
			Body:        strings.TrimSpace(it.Description),
			IngestedAt:  time.Now().UTC(),
		}
		if perr == nil {
			item.PublishedAt = published
		}

		if body, extractErr := p.extractArticleBody(ctx, item.URL); extractErr == nil && body != "" {
			item.Body = body
		} else if extractErr != nil {
			p.logger.Debug().Str("url", item.URL).Err(extractErr).Msg("article extraction skipped, using feed description")
		}

		items = append(items, item)
	}

	return dedupByURL(items), nil
}

// extractArticleBody fetches and extracts an article's main text via
// go-trafilatura, honoring robots.txt first, mirroring the pack's
// scraper_service.go ScrapeURL pipeline.
func (p *RSSParser) extractArticleBody(ctx context.Context, articleURL string) (string, error) {
	if articleURL == "" {
		return "", fmt.Errorf("empty article url")
	}

	allowed, delay, err := p.robots.canFetch(ctx, articleURL)
	if err != nil || !allowed {
		return "", fmt.Errorf("feed: robots.txt disallows %s", articleURL)
	}
	time.Sleep(delay / 10) // a fractional courtesy delay; full delay is the caller's rate budget

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", err
	}

	parsedURL := req.URL
	result, err := trafilatura.Extract(strings.NewReader(string(body)), trafilatura.Options{OriginalURL: parsedURL})
	if err != nil || result == nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}
	return strings.TrimSpace(result.ContentText), nil
}

// dedupByURL keeps, for each URL, the item with the most body content,
// per original_source's static _dedup_by_url helper.
func dedupByURL(items []model.ContentItem) []model.ContentItem {
	best := make(map[string]model.ContentItem)
	order := make([]string, 0, len(items))
	for _, it := range items {
		key := it.URL
		if key == "" {
			key = it.Title
		}
		existing, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = it
			continue
		}
		if len(it.Body) > len(existing.Body) {
			best[key] = it
		}
	}
	out := make([]model.ContentItem, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}
