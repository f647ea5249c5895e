package merger

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-retrieval/internal/domain"
)

func raw(file string, part, idx int, text string) domain.RawChunk {
	return domain.RawChunk{Filename: file, DocPart: part, ChunkIndex: idx, Text: text}
}

func concatRaw(raws []domain.RawChunk) string {
	var b strings.Builder
	for _, r := range raws {
		b.WriteString(r.Text)
	}
	return b.String()
}

func concatMerged(chunks []domain.MergedChunk) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(c.Text)
	}
	return b.String()
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil, DefaultTargetLen))
	assert.Empty(t, Merge([]domain.RawChunk{}, DefaultTargetLen))
}

func TestMerge_SingleChunk(t *testing.T) {
	out := Merge([]domain.RawChunk{raw("f", 1, 7, "hello")}, DefaultTargetLen)
	require.Len(t, out, 1)
	assert.Equal(t, domain.MergedChunk{Filename: "f", DocPart: 1, ChunkIndex: 7, Text: "hello"}, out[0])
}

func TestMerge_AppendMayOvershootTarget(t *testing.T) {
	a, b, c := strings.Repeat("a", 400), strings.Repeat("b", 400), strings.Repeat("c", 400)
	out := Merge([]domain.RawChunk{raw("f", 1, 0, a), raw("f", 1, 1, b), raw("f", 1, 2, c)}, 1000)

	require.Len(t, out, 1)
	assert.Len(t, out[0].Text, 1200)
	assert.Equal(t, 0, out[0].ChunkIndex)
}

func TestMerge_DocPartChangeFlushes(t *testing.T) {
	a, b, c := strings.Repeat("a", 400), strings.Repeat("b", 400), strings.Repeat("c", 400)
	out := Merge([]domain.RawChunk{raw("f", 1, 0, a), raw("f", 1, 1, b), raw("f", 2, 2, c)}, 1000)

	require.Len(t, out, 2)
	assert.Len(t, out[0].Text, 800)
	assert.Len(t, out[1].Text, 400)
	assert.Equal(t, 2, out[1].DocPart)
	assert.Equal(t, 2, out[1].ChunkIndex)
}

func TestMerge_FilenameChangeFlushes(t *testing.T) {
	out := Merge([]domain.RawChunk{raw("a.pdf", 1, 0, "x"), raw("b.pdf", 1, 0, "y")}, 1000)

	require.Len(t, out, 2)
	assert.Equal(t, "a.pdf", out[0].Filename)
	assert.Equal(t, "b.pdf", out[1].Filename)
}

func TestMerge_FullAccumulatorStartsNewChunk(t *testing.T) {
	big := strings.Repeat("x", 1000)
	out := Merge([]domain.RawChunk{raw("f", 1, 0, big), raw("f", 1, 1, "tail"), raw("f", 1, 2, "more")}, 1000)

	require.Len(t, out, 2)
	assert.Equal(t, big, out[0].Text)
	assert.Equal(t, "tailmore", out[1].Text)
	assert.Equal(t, 1, out[1].ChunkIndex)
}

func TestMerge_LengthCountsCharacters(t *testing.T) {
	// 4 runes, 8 bytes each; measured in bytes this would flush at the second chunk.
	wide := strings.Repeat("é", 4)
	out := Merge([]domain.RawChunk{raw("f", 1, 0, wide), raw("f", 1, 1, wide)}, 6)

	require.Len(t, out, 1)
	assert.Equal(t, wide+wide, out[0].Text)
}

func TestMerge_PreservesTextAndIsDeterministic(t *testing.T) {
	var raws []domain.RawChunk
	for file := 0; file < 3; file++ {
		for part := 0; part < 3; part++ {
			for i := 0; i < 10; i++ {
				raws = append(raws, raw(string(rune('a'+file)), part, i, strings.Repeat("z", 90+i*37)))
			}
		}
	}

	first := Merge(raws, DefaultTargetLen)
	second := Merge(raws, DefaultTargetLen)

	assert.Equal(t, concatRaw(raws), concatMerged(first))
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		if prev.Filename == cur.Filename && prev.DocPart == cur.DocPart {
			assert.GreaterOrEqual(t, len([]rune(prev.Text)), DefaultTargetLen)
		}
	}
}

func TestMerge_NonPositiveTargetUsesDefault(t *testing.T) {
	raws := []domain.RawChunk{raw("f", 1, 0, "a"), raw("f", 1, 1, "b")}
	assert.Equal(t, Merge(raws, DefaultTargetLen), Merge(raws, 0))
}

func TestMergeFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "raw.json")
	out := filepath.Join(dir, "out", "merged.json")
	raws := []domain.RawChunk{raw("f", 1, 0, "one "), raw("f", 1, 1, "two "), raw("g", 1, 0, "three")}
	require.NoError(t, WriteMergedChunks(in, toMerged(raws)))

	nRaw, nMerged, err := MergeFile(in, out, DefaultTargetLen)
	require.NoError(t, err)
	assert.Equal(t, 3, nRaw)
	assert.Equal(t, 2, nMerged)

	back, err := ReadRawChunks(out)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "one two ", back[0].Text)
	assert.Equal(t, "three", back[1].Text)
}

func TestMergeFile_MissingInput(t *testing.T) {
	_, _, err := MergeFile(filepath.Join(t.TempDir(), "nope.json"), filepath.Join(t.TempDir(), "out.json"), 0)
	assert.Error(t, err)
}

// raw and merged records share a wire format.
func toMerged(raws []domain.RawChunk) []domain.MergedChunk {
	out := make([]domain.MergedChunk, len(raws))
	for i, r := range raws {
		out[i] = domain.MergedChunk(r)
	}
	return out
}
