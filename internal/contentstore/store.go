package contentstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/aschepis/distill/internal/model"
)

// Store persists ContentItem/Session rows and indexes them for full-text
// and (optionally) embedding-based search. Adapted from the teacher's
// memory.Store: same *sql.DB + Embedder + zerolog.Logger shape, squirrel
// statement builder, and debug-logged truncated-content entry points.
type Store struct {
	db       *sql.DB
	embedder Embedder
	logger   zerolog.Logger
}

// New creates a Store over an already-migrated database handle.
func New(db *sql.DB, embedder Embedder, logger zerolog.Logger) *Store {
	return &Store{db: db, embedder: embedder, logger: logger.With().Str("component", "contentstore").Logger()}
}

func builder() sq.StatementBuilderType {
	return sq.StatementBuilder
}

func unixOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// Exists reports whether an id is already present in content_items.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content_items WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("contentstore: exists: %w", err)
	}
	return count > 0, nil
}

// Upsert inserts or replaces a ContentItem (and its Session row, if sess is
// non-nil) keyed by id, bucketing it by dateBucket. If the store has an
// Embedder configured, the item's title+excerpt is embedded and stored
// alongside it; embedding failure is logged and does not fail the upsert.
func (s *Store) Upsert(ctx context.Context, item model.ContentItem, sess *model.Session, dateBucket string) error {
	s.logger.Debug().Str("method", "Upsert").Str("id", item.ID).Str("date_bucket", dateBucket).Msg("called")

	tagsJSON, err := json.Marshal(item.Tags)
	if err != nil {
		return fmt.Errorf("contentstore: marshal tags: %w", err)
	}
	topicsJSON, err := json.Marshal(item.Topics)
	if err != nil {
		return fmt.Errorf("contentstore: marshal topics: %w", err)
	}
	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("contentstore: marshal metadata: %w", err)
	}

	var embedding []byte
	if s.embedder != nil {
		vec, embErr := s.embedder.Embed(ctx, item.Title+"\n"+item.Excerpt)
		if embErr != nil {
			s.logger.Warn().Err(embErr).Str("id", item.ID).Msg("embedding failed, storing without vector")
		} else {
			embedding = EncodeEmbedding(vec)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("contentstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := builder().
		Replace("content_items").
		Columns("id", "source", "content_type", "title", "body", "excerpt", "url", "author",
			"site_name", "project", "published_at", "ingested_at", "tags_json", "topics_json",
			"metadata_json", "embedding", "date_bucket").
		Values(item.ID, string(item.Source), string(item.ContentType), item.Title, item.Body, item.Excerpt,
			item.URL, item.Author, item.SiteName, item.Project, unixOrNil(item.PublishedAt),
			item.IngestedAt.Unix(), string(tagsJSON), string(topicsJSON), string(metaJSON), embedding, dateBucket)

	queryStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("contentstore: build upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("contentstore: exec upsert: %w", err)
	}

	if sess != nil {
		if err := upsertSession(ctx, tx, *sess); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("contentstore: commit upsert: %w", err)
	}
	s.logger.Info().Str("id", item.ID).Str("source", string(item.Source)).Msg("content item upserted")
	return nil
}

func upsertSession(ctx context.Context, tx *sql.Tx, sess model.Session) error {
	toolJSON, err := json.Marshal(sess.ToolUsage)
	if err != nil {
		return fmt.Errorf("contentstore: marshal tool usage: %w", err)
	}
	outcomesJSON, err := json.Marshal(sess.Outcomes)
	if err != nil {
		return fmt.Errorf("contentstore: marshal outcomes: %w", err)
	}
	signalsJSON, err := json.Marshal(sess.AgentSignals)
	if err != nil {
		return fmt.Errorf("contentstore: marshal signals: %w", err)
	}
	learningsJSON, err := json.Marshal(sess.Learnings)
	if err != nil {
		return fmt.Errorf("contentstore: marshal learnings: %w", err)
	}
	metaJSON, err := json.Marshal(sess.SourceMetadata)
	if err != nil {
		return fmt.Errorf("contentstore: marshal source metadata: %w", err)
	}

	q := builder().
		Replace("sessions").
		Columns("id", "started_at", "ended_at", "duration_seconds", "tool_usage_json",
			"outcomes_json", "signals_json", "learnings_json", "source_meta_json").
		Values(sess.ID, sess.StartedAt.Unix(), sess.EndedAt.Unix(), sess.DurationSeconds,
			string(toolJSON), string(outcomesJSON), string(signalsJSON), string(learningsJSON), string(metaJSON))

	queryStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("contentstore: build session upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("contentstore: exec session upsert: %w", err)
	}
	return nil
}

// FindByDateBucket returns all ContentItems (non-sessions) ingested for a
// given date bucket, ordered by id for determinism.
func (s *Store) FindByDateBucket(ctx context.Context, dateBucket string) ([]model.ContentItem, error) {
	q := builder().
		Select("id", "source", "content_type", "title", "body", "excerpt", "url", "author",
			"site_name", "project", "published_at", "ingested_at", "tags_json", "topics_json", "metadata_json").
		From("content_items").
		Where(sq.Eq{"date_bucket": dateBucket}).
		Where(`id NOT IN (SELECT id FROM sessions)`).
		OrderBy("id")

	queryStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("contentstore: build select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("contentstore: query: %w", err)
	}
	defer rows.Close()

	var out []model.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanContentItem(rows *sql.Rows) (model.ContentItem, error) {
	var item model.ContentItem
	var source, contentType string
	var publishedAt sql.NullInt64
	var ingestedAt int64
	var tagsJSON, topicsJSON, metaJSON string

	if err := rows.Scan(&item.ID, &source, &contentType, &item.Title, &item.Body, &item.Excerpt,
		&item.URL, &item.Author, &item.SiteName, &item.Project, &publishedAt, &ingestedAt,
		&tagsJSON, &topicsJSON, &metaJSON); err != nil {
		return item, fmt.Errorf("contentstore: scan: %w", err)
	}

	item.Source = model.Source(source)
	item.ContentType = model.ContentType(contentType)
	if publishedAt.Valid {
		item.PublishedAt = time.Unix(publishedAt.Int64, 0).UTC()
	}
	item.IngestedAt = time.Unix(ingestedAt, 0).UTC()
	_ = json.Unmarshal([]byte(tagsJSON), &item.Tags)
	_ = json.Unmarshal([]byte(topicsJSON), &item.Topics)
	_ = json.Unmarshal([]byte(metaJSON), &item.Metadata)
	return item, nil
}

// SearchFTS runs a full-text query against titles and bodies, returning
// matching ids ranked by relevance, newest first on ties.
func (s *Store) SearchFTS(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT content_items_fts.id
FROM content_items_fts
JOIN content_items ON content_items.id = content_items_fts.id
WHERE content_items_fts MATCH ?
ORDER BY bm25(content_items_fts), content_items.ingested_at DESC
LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("contentstore: fts search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("contentstore: fts scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// scored pairs an id with its similarity score, for FindSimilar's ranking.
type scored struct {
	id    string
	score float64
}

// FindSimilar returns the k nearest ids to vec by cosine similarity over
// stored embeddings (spec.md §9's optional nearest(vector, k) capability).
// Rows with no stored embedding are skipped.
func (s *Store) FindSimilar(ctx context.Context, vec []float32, k int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM content_items WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("contentstore: find similar query: %w", err)
	}
	defer rows.Close()

	var candidates []scored
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("contentstore: find similar scan: %w", err)
		}
		stored, err := DecodeEmbedding(blob)
		if err != nil {
			continue
		}
		candidates = append(candidates, scored{id: id, score: CosineSimilarity(vec, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}
