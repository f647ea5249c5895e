package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"rag-retrieval/internal/corpus"
	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/embedding"
	"rag-retrieval/internal/session"
)

const (
	DefaultContextResults = 3
	DefaultContextChars   = 800
)

var (
	// ErrNoCorpus disables search when the corpus artifacts could not be loaded.
	ErrNoCorpus = errors.New("corpus artifacts unavailable")
	// ErrNoProvider disables search when no embedding provider could be configured.
	ErrNoProvider = errors.New("embedding provider misconfigured")
)

// RetrievalService answers similarity searches over a prebuilt corpus.
// Every failure is logged and surfaces to callers as an empty result.
type RetrievalService struct {
	provider embedding.Provider
	corpus   *corpus.Corpus
	degraded error
	logger   *slog.Logger
}

// NewRetrievalService wires the service. A nil provider or a nil corpus puts
// it in degraded mode for its lifetime: every search returns no results.
func NewRetrievalService(provider embedding.Provider, c *corpus.Corpus, logger *slog.Logger) *RetrievalService {
	if logger == nil {
		logger = slog.Default()
	}
	var degraded error
	switch {
	case provider == nil:
		degraded = ErrNoProvider
	case c == nil:
		degraded = ErrNoCorpus
	}
	return &RetrievalService{provider: provider, corpus: c, degraded: degraded, logger: logger.With("component", "retrieval")}
}

// Available reports whether document search can run.
func (s *RetrievalService) Available() bool { return s.degraded == nil }

// Unavailable returns why document search is disabled, or nil.
func (s *RetrievalService) Unavailable() error { return s.degraded }

// SearchSimilar embeds query through the session cache and returns up to k
// chunks ordered by ascending distance. A nil session embeds without caching.
func (s *RetrievalService) SearchSimilar(ctx context.Context, sess *session.Session, query string, k int) []domain.SearchResult {
	if !s.Available() {
		return []domain.SearchResult{}
	}
	var (
		vec domain.Vector
		err error
	)
	if sess != nil && sess.Cache != nil {
		vec, err = sess.Cache.LookupOrCompute(ctx, query)
	} else {
		vec, err = s.provider.EmbedOne(ctx, query)
	}
	if err != nil {
		s.logFailure("embed query", err)
		return []domain.SearchResult{}
	}
	return s.lookup(ctx, vec, k)
}

// SearchSimilarBatch embeds all queries in one provider call, bypassing any
// session cache, and returns one result list per query in input order.
// It is all-or-nothing: if the provider fails the whole batch is nil.
func (s *RetrievalService) SearchSimilarBatch(ctx context.Context, queries []string, k int) [][]domain.SearchResult {
	if len(queries) == 0 {
		return [][]domain.SearchResult{}
	}
	if !s.Available() {
		out := make([][]domain.SearchResult, len(queries))
		for i := range out {
			out[i] = []domain.SearchResult{}
		}
		return out
	}
	vecs, err := s.provider.EmbedMany(ctx, queries)
	if err != nil {
		s.logFailure("embed batch", err, "queries", len(queries))
		return nil
	}
	if len(vecs) != len(queries) {
		s.logger.Warn("embed batch: provider broke the count contract",
			"err", embedding.ErrMalformedResponse, "queries", len(queries), "vectors", len(vecs))
		return nil
	}
	out := make([][]domain.SearchResult, len(vecs))
	for i, v := range vecs {
		out[i] = s.lookup(ctx, v, k)
	}
	return out
}

func (s *RetrievalService) lookup(ctx context.Context, vec domain.Vector, k int) []domain.SearchResult {
	hits, err := s.corpus.Index.Search(ctx, vec, k)
	if err != nil {
		s.logger.Warn("index search failed", "err", err)
		return []domain.SearchResult{}
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		chunk, ok := s.corpus.Chunk(h.Position)
		if !ok {
			continue
		}
		results = append(results, domain.SearchResult{
			Text:       chunk.Text,
			Score:      h.Distance,
			Filename:   chunk.Filename,
			DocPart:    chunk.DocPart,
			ChunkIndex: chunk.ChunkIndex,
		})
	}
	return results
}

func (s *RetrievalService) logFailure(op string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	switch {
	case embedding.IsConfiguration(err):
		s.logger.Error(op+": embedding provider misconfigured", attrs...)
	case errors.Is(err, context.Canceled):
		s.logger.Debug(op+": cancelled", attrs...)
	default:
		s.logger.Warn(op+": embedding unavailable", attrs...)
	}
}

// BuildContext joins the text of the first n results, each cut to maxChars
// characters, separated by blank lines. Non-positive arguments use the defaults.
func BuildContext(results []domain.SearchResult, n, maxChars int) string {
	if n <= 0 {
		n = DefaultContextResults
	}
	if maxChars <= 0 {
		maxChars = DefaultContextChars
	}
	if n > len(results) {
		n = len(results)
	}
	parts := make([]string, 0, n)
	for _, r := range results[:n] {
		parts = append(parts, clip(r.Text, maxChars))
	}
	return strings.Join(parts, "\n\n")
}

func clip(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
