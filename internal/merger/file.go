package merger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rag-retrieval/internal/domain"
)

// ReadRawChunks loads a JSON array of raw chunk records.
func ReadRawChunks(path string) ([]domain.RawChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raws []domain.RawChunk
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return raws, nil
}

// WriteMergedChunks writes chunks as a JSON array. The file is replaced atomically.
func WriteMergedChunks(path string, chunks []domain.MergedChunk) error {
	if chunks == nil {
		chunks = []domain.MergedChunk{}
	}
	data, err := json.MarshalIndent(chunks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// MergeFile reads raw chunks from in, merges them and writes the result to out.
// It returns the number of raw and merged chunks.
func MergeFile(in, out string, targetLen int) (int, int, error) {
	raws, err := ReadRawChunks(in)
	if err != nil {
		return 0, 0, err
	}
	merged := Merge(raws, targetLen)
	if err := WriteMergedChunks(out, merged); err != nil {
		return 0, 0, err
	}
	return len(raws), len(merged), nil
}
