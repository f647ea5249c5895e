package domain

import "context"

// RawChunk is a primitive fragment produced by the upstream document splitter.
// Ordering within a (Filename, DocPart) group is significant.
type RawChunk struct {
	Filename   string `json:"filename"`
	DocPart    int    `json:"doc_part"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"chunk"`
}

// MergedChunk is one indexable unit. It keeps the identity of its first constituent.
type MergedChunk struct {
	Filename   string `json:"filename"`
	DocPart    int    `json:"doc_part"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"chunk"`
}

// Ref returns the identity of the chunk without its text.
func (c MergedChunk) Ref() ChunkRef {
	return ChunkRef{Filename: c.Filename, DocPart: c.DocPart, ChunkIndex: c.ChunkIndex}
}

// ChunkRef is one entry of the metadata store, parallel to the vector index.
type ChunkRef struct {
	Filename   string `json:"filename"`
	DocPart    int    `json:"doc_part"`
	ChunkIndex int    `json:"chunk_index"`
}

// Vector is an embedding. Its length is fixed by the embedding model.
type Vector = []float32

// Hit is a single nearest-neighbor match: an opaque corpus position and its distance.
type Hit struct {
	Position int
	Distance float32
}

// SearchResult represents a matching chunk with its distance to the query.
// Lower scores are better.
type SearchResult struct {
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Filename   string  `json:"filename"`
	DocPart    int     `json:"doc_part"`
	ChunkIndex int     `json:"chunk_index"`
}

// EmbeddingProvider converts free text into vectors through a remote model.
// EmbedMany is all-or-nothing: on failure no vectors are returned.
type EmbeddingProvider interface {
	Name() string
	EmbedOne(ctx context.Context, text string) (Vector, error)
	EmbedMany(ctx context.Context, texts []string) ([]Vector, error)
}

// VectorIndex is a read-only nearest-neighbor structure built offline.
// Search returns hits ordered by ascending distance, at most k of them.
type VectorIndex interface {
	Search(ctx context.Context, query Vector, k int) ([]Hit, error)
	Len() int
	Dimension() int
}
