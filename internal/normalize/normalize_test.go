package normalize

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

func newNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	return New(time.UTC, zerolog.Nop())
}

func TestDeriveIDStableForSameSourceNativeID(t *testing.T) {
	item := model.ContentItem{Source: model.SourceRSS, Title: "Post"}
	id1 := DeriveID(item, "native-42")
	id2 := DeriveID(item, "native-42")
	if id1 != id2 {
		t.Fatalf("DeriveID not stable: %s != %s", id1, id2)
	}
}

func TestDeriveIDURLNormalizationDedups(t *testing.T) {
	a := model.ContentItem{Source: model.SourceRSS, URL: "https://Example.com/post/?utm_source=x&ref=y"}
	b := model.ContentItem{Source: model.SourceRSS, URL: "https://example.com/post?utm_source=z"}
	if DeriveID(a, "") != DeriveID(b, "") {
		t.Errorf("expected trivially-different URLs to dedup to the same id")
	}
}

func TestDeriveIDFallsBackToContentHash(t *testing.T) {
	published := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := model.ContentItem{Source: model.SourceGmail, Title: "Weekly digest", PublishedAt: published, Body: "hello world"}
	b := a
	id1 := DeriveID(a, "")
	id2 := DeriveID(b, "")
	if id1 != id2 {
		t.Fatalf("identical content should hash to the same id")
	}
	b.Body = "different body"
	if DeriveID(a, "") == DeriveID(b, "") {
		t.Errorf("different bodies should not collide")
	}
}

func TestAddDeduplicatesBySourceNativeID(t *testing.T) {
	n := newNormalizer(t)
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	second := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)

	n.Add(Raw{Item: model.ContentItem{Source: model.SourceRSS, Title: "v1", IngestedAt: first}, SourceNativeID: "abc"})
	n.Add(Raw{Item: model.ContentItem{Source: model.SourceRSS, Title: "v2", IngestedAt: second}, SourceNativeID: "abc"})

	if n.Count() != 1 {
		t.Fatalf("Count() = %d, want 1 after deduping same source_native_id", n.Count())
	}

	buckets := n.Buckets()
	if len(buckets) != 1 || len(buckets[0].Items) != 1 {
		t.Fatalf("expected one bucketed item, got %+v", buckets)
	}
	item := buckets[0].Items[0]
	if item.Title != "v2" {
		t.Errorf("title = %q, want last-write-wins v2", item.Title)
	}
	if !item.IngestedAt.Equal(first) {
		t.Errorf("IngestedAt = %v, want first-write-wins %v", item.IngestedAt, first)
	}
}

func TestBucketsGroupByCalendarDateAndSortDeterministically(t *testing.T) {
	n := newNormalizer(t)
	n.Add(Raw{Item: model.ContentItem{Source: model.SourceRSS, Title: "B", URL: "https://x.test/b"}, SourceNativeID: "b"})
	n.Add(Raw{Item: model.ContentItem{Source: model.SourceRSS, Title: "A", URL: "https://x.test/a"}, SourceNativeID: "a"})

	for id, idx := range n.seen {
		n.items[idx].PublishedAt = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
		n.seen[id] = idx
	}

	buckets := n.Buckets()
	if len(buckets) != 1 {
		t.Fatalf("expected a single date bucket, got %d", len(buckets))
	}
	if len(buckets[0].Items) != 2 {
		t.Fatalf("expected 2 items in the bucket, got %d", len(buckets[0].Items))
	}
	if buckets[0].Items[0].ID >= buckets[0].Items[1].ID {
		t.Errorf("items within a bucket must be sorted by id")
	}
}

func TestAddSessionKeepsSessionsSeparateFromItems(t *testing.T) {
	n := newNormalizer(t)
	sess := model.Session{
		ContentItem: model.ContentItem{Source: model.SourceClaudeSession, Title: "session"},
		StartedAt:   time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	n.Add(Raw{Item: sess.ContentItem, Session: &sess, SourceNativeID: "sess-1"})

	buckets := n.Buckets()
	if len(buckets) != 1 || len(buckets[0].Sessions) != 1 || len(buckets[0].Items) != 0 {
		t.Fatalf("expected the record to bucket as a session, not a content item: %+v", buckets)
	}
	if buckets[0].Date != "2026-01-05" {
		t.Errorf("date = %q, want 2026-01-05 (bucketed by started_at)", buckets[0].Date)
	}
}
