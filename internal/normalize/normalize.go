// Package normalize implements the Normalizer & Dedup component (spec.md
// §4.2, C2): it merges raw parser output into the canonical ContentItem/
// Session stream, derives stable ids, drops duplicates, and buckets records
// by calendar date.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/aschepis/distill/internal/model"
)

// Raw is a pre-id record as yielded by a parser: everything needed to derive
// a stable id and bucket it, before the Normalizer decides identity.
type Raw struct {
	Item          model.ContentItem
	Session       *model.Session // non-nil when this raw record is a Session
	SourceNativeID string        // stable id supplied by the source, if any
}

// Normalizer deduplicates and buckets a stream of Raw records into canonical
// ContentItems/Sessions, keyed by their derived id.
type Normalizer struct {
	timezone *time.Location
	logger   zerolog.Logger

	seen map[string]int // id -> index into items, for last-write-wins merge
	items []model.ContentItem
	sessions map[string]*model.Session // id -> session, when raw.Session != nil
}

// New creates a Normalizer that buckets dates in tz.
func New(tz *time.Location, logger zerolog.Logger) *Normalizer {
	if tz == nil {
		tz = time.UTC
	}
	return &Normalizer{
		timezone: tz,
		logger:   logger.With().Str("component", "normalizer").Logger(),
		seen:     make(map[string]int),
		sessions: make(map[string]*model.Session),
	}
}

// DeriveID computes the canonical id for a raw record following the
// priority chain in spec.md §4.2: (source, source_native_id), else
// sha256(normalized(url)), else sha256(source|title|isoDate|first512(body)).
func DeriveID(item model.ContentItem, sourceNativeID string) string {
	if sourceNativeID != "" {
		return hashHex(string(item.Source) + "|" + sourceNativeID)
	}
	if item.URL != "" {
		return hashHex(normalizeURL(item.URL))
	}
	isoDate := ""
	switch {
	case item.HasPublishedAt():
		isoDate = item.PublishedAt.UTC().Format("2006-01-02")
	case !item.IngestedAt.IsZero():
		isoDate = item.IngestedAt.UTC().Format("2006-01-02")
	}
	body := item.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return hashHex(fmt.Sprintf("%s|%s|%s|%s", item.Source, item.Title, isoDate, body))
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// normalizeURL lowercases scheme/host, strips fragment and a fixed set of
// known tracking query parameters, and drops a trailing slash, so that
// trivially-different URLs for the same article dedup to the same id.
func normalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "ref", "fbclid", "gclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// Add ingests one raw record. Collisions are resolved last-write-wins on
// mutable metadata, first-write-wins on IngestedAt, per spec.md §4.2.
func (n *Normalizer) Add(raw Raw) {
	id := DeriveID(raw.Item, raw.SourceNativeID)
	raw.Item.ID = id
	if raw.Session != nil {
		raw.Session.ID = id
	}

	if idx, ok := n.seen[id]; ok {
		existing := n.items[idx]
		firstIngested := existing.IngestedAt
		merged := raw.Item
		merged.IngestedAt = firstIngested
		n.items[idx] = merged
		if raw.Session != nil {
			raw.Session.IngestedAt = firstIngested
			n.sessions[id] = raw.Session
		}
		n.logger.Debug().Str("id", id).Msg("duplicate record merged")
		return
	}

	n.seen[id] = len(n.items)
	n.items = append(n.items, raw.Item)
	if raw.Session != nil {
		n.sessions[id] = raw.Session
	}
}

// bucketDate resolves the date used for bucketing per spec.md §4.2:
// published_at (content), else started_at (sessions), else ingested_at.
func (n *Normalizer) bucketDate(id string) string {
	item := n.items[n.seen[id]]
	if sess, ok := n.sessions[id]; ok && !sess.StartedAt.IsZero() {
		return sess.StartedAt.In(n.timezone).Format("2006-01-02")
	}
	if item.HasPublishedAt() {
		return item.PublishedAt.In(n.timezone).Format("2006-01-02")
	}
	return item.IngestedAt.In(n.timezone).Format("2006-01-02")
}

// Bucket is one calendar date's worth of canonical, deduplicated records.
type Bucket struct {
	Date     string
	Items    []model.ContentItem
	Sessions []model.Session
}

// Buckets returns all ingested records grouped by calendar date, sorted
// ascending by date, with items sorted by id within each bucket for
// deterministic downstream processing.
func (n *Normalizer) Buckets() []Bucket {
	byDate := make(map[string]*Bucket)
	for id := range n.seen {
		date := n.bucketDate(id)
		b, ok := byDate[date]
		if !ok {
			b = &Bucket{Date: date}
			byDate[date] = b
		}
		item := n.items[n.seen[id]]
		if sess, ok := n.sessions[id]; ok {
			b.Sessions = append(b.Sessions, *sess)
		} else {
			b.Items = append(b.Items, item)
		}
	}

	dates := lo.Keys(byDate)
	sort.Strings(dates)

	out := make([]Bucket, 0, len(dates))
	for _, d := range dates {
		b := byDate[d]
		sort.Slice(b.Items, func(i, j int) bool { return b.Items[i].ID < b.Items[j].ID })
		sort.Slice(b.Sessions, func(i, j int) bool { return b.Sessions[i].ID < b.Sessions[j].ID })
		out = append(out, *b)
	}
	return out
}

// Count returns the number of distinct canonical records ingested so far.
func (n *Normalizer) Count() int {
	return len(n.seen)
}
