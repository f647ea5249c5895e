package cache

import (
	"context"
	"log/slog"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/embedding"
)

const (
	// DefaultCapacity is the number of fingerprints kept per session.
	DefaultCapacity = 50
	// FingerprintLen is the number of leading characters that form a cache key.
	FingerprintLen = 100
)

// Fingerprint derives the cache key for text: its first FingerprintLen characters.
// Distinct texts sharing that prefix share a slot.
func Fingerprint(text string) string {
	n := 0
	for i := range text {
		if n == FingerprintLen {
			return text[:i]
		}
		n++
	}
	return text
}

type entry struct {
	vector domain.Vector
	seq    uint64
}

// EmbeddingCache maps text fingerprints to vectors with strict insertion-order
// eviction: once full, the oldest inserted entry goes first no matter how
// recently it was read. It is not safe for concurrent use; give every session
// its own instance.
type EmbeddingCache struct {
	provider embedding.Provider
	entries  *simplelru.LRU[string, entry]
	seq      uint64
	logger   *slog.Logger
}

// New creates a cache in front of provider. capacity <= 0 uses DefaultCapacity.
func New(provider embedding.Provider, capacity int, logger *slog.Logger) *EmbeddingCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedding-cache")
	// only Peek is used for reads, so the recency list stays in insertion order
	entries, err := simplelru.NewLRU[string, entry](capacity, func(key string, e entry) {
		logger.Debug("evicted fingerprint", "seq", e.seq, "key_len", len(key))
	})
	if err != nil {
		// NewLRU only fails for non-positive sizes
		panic(err)
	}
	return &EmbeddingCache{provider: provider, entries: entries, logger: logger}
}

// LookupOrCompute returns the cached vector for text's fingerprint, or embeds
// text and caches the result. Failures are returned and nothing is cached.
func (c *EmbeddingCache) LookupOrCompute(ctx context.Context, text string) (domain.Vector, error) {
	key := Fingerprint(text)
	if e, ok := c.entries.Peek(key); ok {
		return e.vector, nil
	}
	vec, err := c.provider.EmbedOne(ctx, text)
	if err != nil {
		return nil, err
	}
	c.seq++
	c.entries.Add(key, entry{vector: vec, seq: c.seq})
	return vec, nil
}

// Contains reports whether text's fingerprint is cached.
func (c *EmbeddingCache) Contains(text string) bool {
	return c.entries.Contains(Fingerprint(text))
}

// Len returns the number of cached fingerprints.
func (c *EmbeddingCache) Len() int { return c.entries.Len() }

// Fingerprints returns cached keys from oldest to newest insertion.
func (c *EmbeddingCache) Fingerprints() []string { return c.entries.Keys() }

// Purge drops every entry.
func (c *EmbeddingCache) Purge() { c.entries.Purge() }
