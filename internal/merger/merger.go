package merger

import (
	"strings"
	"unicode/utf8"

	"rag-retrieval/internal/domain"
)

// DefaultTargetLen is the length, in characters, at which an open chunk stops accepting appends.
const DefaultTargetLen = 1000

// Merge coalesces primitive chunks into larger indexable chunks in a single pass.
// Input must be sorted by (filename, doc_part, chunk_index). A chunk never spans
// a filename or doc_part change. The length check gates whether an append starts,
// so a merged chunk may exceed targetLen; text is never truncated.
func Merge(raws []domain.RawChunk, targetLen int) []domain.MergedChunk {
	if len(raws) == 0 {
		return nil
	}
	if targetLen <= 0 {
		targetLen = DefaultTargetLen
	}

	var out []domain.MergedChunk
	var acc accumulator
	acc.open(raws[0])
	for _, raw := range raws[1:] {
		switch {
		case raw.Filename != acc.head.Filename || raw.DocPart != acc.head.DocPart:
			out = append(out, acc.flush())
			acc.open(raw)
		case acc.length >= targetLen:
			out = append(out, acc.flush())
			acc.open(raw)
		default:
			acc.append(raw.Text)
		}
	}
	return append(out, acc.flush())
}

type accumulator struct {
	head   domain.RawChunk
	text   strings.Builder
	length int // characters, not bytes
}

func (a *accumulator) open(first domain.RawChunk) {
	a.head = first
	a.text.Reset()
	a.length = 0
	a.append(first.Text)
}

func (a *accumulator) append(text string) {
	a.text.WriteString(text)
	a.length += utf8.RuneCountInString(text)
}

func (a *accumulator) flush() domain.MergedChunk {
	return domain.MergedChunk{
		Filename:   a.head.Filename,
		DocPart:    a.head.DocPart,
		ChunkIndex: a.head.ChunkIndex,
		Text:       a.text.String(),
	}
}
