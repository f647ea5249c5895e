package memory

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/vectorstore"
)

// Snapshot is the serialized form of a flat index as written by the offline build.
type Snapshot struct {
	Dimension int
	Metric    vectorstore.Metric
	Vectors   [][]float32
}

// Index is an in-memory flat index searched exhaustively. It is immutable
// after construction and safe for concurrent reads.
type Index struct {
	dimension int
	metric    vectorstore.Metric
	vectors   [][]float32
}

// New builds an index over vectors. Every vector must have the given dimension.
func New(dimension int, metric vectorstore.Metric, vectors [][]float32) (*Index, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	switch metric {
	case "":
		metric = vectorstore.MetricL2
	case vectorstore.MetricL2, vectorstore.MetricCosine:
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return nil, fmt.Errorf("vector %d: dimension %d, want %d", i, len(v), dimension)
		}
	}
	return &Index{dimension: dimension, metric: metric, vectors: vectors}, nil
}

// Load reads a gob-encoded Snapshot from path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a gob-encoded Snapshot.
func Decode(r io.Reader) (*Index, error) {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return New(snap.Dimension, snap.Metric, snap.Vectors)
}

// Save writes the index as a gob-encoded Snapshot, replacing path atomically.
func (s *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	snap := Snapshot{Dimension: s.dimension, Metric: s.metric, Vectors: s.vectors}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Len returns the number of indexed vectors.
func (s *Index) Len() int { return len(s.vectors) }

// Dimension returns the vector dimensionality fixed at build time.
func (s *Index) Dimension() int { return s.dimension }

// Search returns up to k hits ordered by ascending distance. Equal distances
// keep corpus order.
func (s *Index) Search(ctx context.Context, query domain.Vector, k int) ([]domain.Hit, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", vectorstore.ErrDimensionMismatch, len(query), s.dimension)
	}
	if k <= 0 || len(s.vectors) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dist := l2
	if s.metric == vectorstore.MetricCosine {
		dist = cosine
	}
	hits := make([]domain.Hit, len(s.vectors))
	for i, v := range s.vectors {
		hits[i] = domain.Hit{Position: i, Distance: dist(query, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func l2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

var _ vectorstore.Index = (*Index)(nil)
