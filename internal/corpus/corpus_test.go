package corpus

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-retrieval/internal/domain"
)

type sizedIndex int

func (n sizedIndex) Search(context.Context, domain.Vector, int) ([]domain.Hit, error) { return nil, nil }
func (n sizedIndex) Len() int                                                         { return int(n) }
func (n sizedIndex) Dimension() int                                                   { return 3 }

func chunks() []domain.MergedChunk {
	return []domain.MergedChunk{
		{Filename: "perda.pdf", DocPart: 1, ChunkIndex: 0, Text: "pajak daerah"},
		{Filename: "perda.pdf", DocPart: 2, ChunkIndex: 4, Text: "retribusi"},
	}
}

func refs(cs []domain.MergedChunk) []domain.ChunkRef {
	out := make([]domain.ChunkRef, len(cs))
	for i, c := range cs {
		out[i] = c.Ref()
	}
	return out
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func paths(t *testing.T) Paths {
	dir := t.TempDir()
	return Paths{
		Index:    filepath.Join(dir, "faiss_index.gob"),
		Metadata: filepath.Join(dir, "faiss_metadata.json"),
		Chunks:   filepath.Join(dir, "chunks.json"),
	}
}

func TestLoad(t *testing.T) {
	p := paths(t)
	writeJSON(t, p.Metadata, refs(chunks()))
	writeJSON(t, p.Chunks, chunks())

	c, err := Load(p, sizedIndex(2))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	got, ok := c.Chunk(1)
	require.True(t, ok)
	assert.Equal(t, "retribusi", got.Text)

	_, ok = c.Chunk(2)
	assert.False(t, ok)
	_, ok = c.Chunk(-1)
	assert.False(t, ok)
}

func TestLoad_MissingArtifacts(t *testing.T) {
	p := paths(t)
	writeJSON(t, p.Metadata, refs(chunks()))

	_, err := Load(p, sizedIndex(2))
	assert.ErrorIs(t, err, ErrArtifactMissing)

	_, err = New(nil, refs(chunks()), chunks())
	assert.ErrorIs(t, err, ErrArtifactMissing)
}

func TestNew_SizeMismatch(t *testing.T) {
	_, err := New(sizedIndex(3), refs(chunks()), chunks())
	assert.ErrorIs(t, err, ErrDataIntegrity)

	_, err = New(sizedIndex(2), refs(chunks())[:1], chunks())
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestNew_IdentityMismatch(t *testing.T) {
	meta := refs(chunks())
	meta[0], meta[1] = meta[1], meta[0]

	_, err := New(sizedIndex(2), meta, chunks())
	assert.ErrorIs(t, err, ErrDataIntegrity)
	assert.Contains(t, err.Error(), "position 0")
}

func TestLoad_CorruptJSON(t *testing.T) {
	p := paths(t)
	require.NoError(t, os.WriteFile(p.Metadata, []byte("{not json"), 0o644))
	writeJSON(t, p.Chunks, chunks())

	_, err := Load(p, sizedIndex(2))
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestStatus(t *testing.T) {
	p := paths(t)
	writeJSON(t, p.Chunks, chunks())

	status := Status(p)
	require.Len(t, status, 3)
	assert.Equal(t, "index", status[0].Name)
	assert.False(t, status[0].Present)
	assert.False(t, status[1].Present)
	assert.True(t, status[2].Present)

	missing := Missing(p)
	assert.Len(t, missing, 2)

	assert.Len(t, Status(Paths{Metadata: p.Metadata, Chunks: p.Chunks}), 2)
}
