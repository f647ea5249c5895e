// Package corpus loads the artifacts the retrieval path needs at startup and
// checks that they describe the same snapshot.
package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"rag-retrieval/internal/domain"
)

var (
	// ErrArtifactMissing means at least one artifact is absent; document search is disabled.
	ErrArtifactMissing = errors.New("corpus artifact missing")
	// ErrDataIntegrity means the artifacts exist but do not come from one snapshot.
	ErrDataIntegrity = errors.New("corpus artifacts inconsistent")
)

// Paths locates the three startup artifacts.
type Paths struct {
	Index    string
	Metadata string
	Chunks   string
}

// Artifact is the presence report for one file.
type Artifact struct {
	Name    string
	Path    string
	Present bool
}

// Status reports which artifacts exist. An empty Index path means the index
// lives outside the filesystem and is not reported.
func Status(p Paths) []Artifact {
	var out []Artifact
	add := func(name, path string) {
		_, err := os.Stat(path)
		out = append(out, Artifact{Name: name, Path: path, Present: err == nil})
	}
	if p.Index != "" {
		add("index", p.Index)
	}
	add("metadata", p.Metadata)
	add("chunks", p.Chunks)
	return out
}

// Missing returns the artifacts that are absent.
func Missing(p Paths) []Artifact {
	var out []Artifact
	for _, a := range Status(p) {
		if !a.Present {
			out = append(out, a)
		}
	}
	return out
}

// Corpus is the read-only retrieval corpus: a vector index plus the metadata
// and chunk stores parallel to it.
type Corpus struct {
	Index    domain.VectorIndex
	metadata []domain.ChunkRef
	chunks   []domain.MergedChunk
}

// New validates that index, metadata and chunks describe the same snapshot.
func New(index domain.VectorIndex, metadata []domain.ChunkRef, chunks []domain.MergedChunk) (*Corpus, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: no index", ErrArtifactMissing)
	}
	if len(metadata) != len(chunks) || index.Len() != len(chunks) {
		return nil, fmt.Errorf("%w: index has %d vectors, metadata %d entries, chunk store %d records",
			ErrDataIntegrity, index.Len(), len(metadata), len(chunks))
	}
	for i := range chunks {
		if metadata[i] != chunks[i].Ref() {
			return nil, fmt.Errorf("%w: position %d: metadata names %s#%d, chunk store holds %s#%d",
				ErrDataIntegrity, i, metadata[i].Filename, metadata[i].ChunkIndex, chunks[i].Filename, chunks[i].ChunkIndex)
		}
	}
	return &Corpus{Index: index, metadata: metadata, chunks: chunks}, nil
}

// Load reads the metadata and chunk store from disk and binds them to index.
// Index loading is left to the caller so that any backend can be used.
func Load(p Paths, index domain.VectorIndex) (*Corpus, error) {
	if missing := Missing(Paths{Metadata: p.Metadata, Chunks: p.Chunks}); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, missing[0].Path)
	}
	var metadata []domain.ChunkRef
	if err := readJSON(p.Metadata, &metadata); err != nil {
		return nil, err
	}
	var chunks []domain.MergedChunk
	if err := readJSON(p.Chunks, &chunks); err != nil {
		return nil, err
	}
	return New(index, metadata, chunks)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrDataIntegrity, path, err)
	}
	return nil
}

// Len returns the number of corpus positions.
func (c *Corpus) Len() int { return len(c.chunks) }

// Chunk returns the chunk at position, or false when position is out of range.
func (c *Corpus) Chunk(position int) (domain.MergedChunk, bool) {
	if position < 0 || position >= len(c.chunks) {
		return domain.MergedChunk{}, false
	}
	return c.chunks[position], true
}
