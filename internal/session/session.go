// Package session holds per-user mutable retrieval state. Each interactive
// session owns one Session and closes it when the session ends.
package session

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rag-retrieval/internal/embedding"
	"rag-retrieval/internal/embedding/cache"
)

// Session carries the state scoped to one user session. It is not safe to
// share across concurrent users.
type Session struct {
	ID        uuid.UUID
	StartedAt time.Time
	Cache     *cache.EmbeddingCache
}

// New starts a session whose embedding cache sits in front of provider.
func New(provider embedding.Provider, cacheCapacity int, logger *slog.Logger) *Session {
	id := uuid.New()
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:        id,
		StartedAt: time.Now(),
		Cache:     cache.New(provider, cacheCapacity, logger.With("session", id.String())),
	}
}

// Close releases session state.
func (s *Session) Close() {
	if s == nil || s.Cache == nil {
		return
	}
	s.Cache.Purge()
}
