// Package contentstore is the durable, searchable index of ContentItem/
// Session rows: a sqlite3+squirrel store with an FTS5 full-text index and
// an optional embedding-based nearest-neighbor search, adapted from the
// teacher's memory package (memory/store.go, memory/embedder.go,
// memory/query_builder.go). It exists to satisfy spec.md §9's optional
// "embedding/vector-store integration" capability and to offer a fast
// existing-id lookup (Exists); the Store described in spec.md §4.4
// (UnifiedMemory/BlogState/BlogMemory) is a separate, file-based component
// in internal/memory and internal/state — see DESIGN.md.
package contentstore

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
)

// Embedder is a pluggable text-to-vector capability (spec.md §9's optional
// embed(text) -> vector). When absent, Upsert stores no embedding and
// FindSimilar, which ranks stored embeddings only, returns no matches; there
// is no string-matching fallback in this package.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EncodeEmbedding packs a []float32 into a little-endian byte blob for
// storage in the embedding BLOB column.
func EncodeEmbedding(vec []float32) []byte {
	if vec == nil {
		return nil
	}
	b := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

// DecodeEmbedding unpacks a stored embedding blob back into a []float32.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if b == nil {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, errors.New("contentstore: invalid embedding blob length")
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// CosineSimilarity between two equal-length vectors; 0 for mismatched or
// empty inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
