package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"rag-retrieval/internal/classify"
	"rag-retrieval/internal/config"
	"rag-retrieval/internal/corpus"
	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/embedding"
	"rag-retrieval/internal/embedding/jina"
	"rag-retrieval/internal/embedding/openai"
	"rag-retrieval/internal/logging"
	"rag-retrieval/internal/service"
	"rag-retrieval/internal/session"
	"rag-retrieval/internal/tui"
	"rag-retrieval/internal/vectorstore"
	"rag-retrieval/internal/vectorstore/memory"
	"rag-retrieval/internal/vectorstore/qdrant"
)

type queryList []string

func (q *queryList) String() string     { return fmt.Sprint(*q) }
func (q *queryList) Set(v string) error { *q = append(*q, v); return nil }

func main() {
	_ = godotenv.Load()

	var (
		cfgPath     string
		check       bool
		withContext bool
		queries     queryList
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/rag-retrieval/config.yaml if not provided)")
	flag.BoolVar(&check, "check", false, "Print credential and corpus status, then exit")
	flag.Var(&queries, "query", "Run a batch search instead of the TUI (repeatable)")
	flag.BoolVar(&withContext, "context", false, "With -query, print the joined context text instead of JSON results")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, nil)
	slog.SetDefault(logger)

	if check {
		runCheck(cfg)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	provider, err := newProvider(cfg, logger)
	if err != nil {
		if !embedding.IsConfiguration(err) {
			logger.Error("embedder init failed", "embedder", cfg.Embedder.Type, "err", err)
			os.Exit(1)
		}
		// degraded: misconfiguration needs an operator, retrying will not help
		logger.Error("no document search: embedding provider misconfigured", "embedder", cfg.Embedder.Type, "err", err)
		provider = nil
	}

	c, err := openCorpus(ctx, cfg)
	if err != nil {
		// degraded: the process keeps running with document search disabled
		logger.Warn("no document search", "err", err)
		c = nil
	} else {
		logger.Info("corpus loaded", "chunks", c.Len(), "dimension", c.Index.Dimension())
	}
	svc := service.NewRetrievalService(provider, c, logger)

	if len(queries) > 0 {
		if err := runBatch(ctx, os.Stdout, svc, cfg, queries, withContext); err != nil {
			logger.Error("batch search failed", "err", err)
			os.Exit(1)
		}
		return
	}

	sess := session.New(provider, cfg.Cache.Capacity, logger)
	defer sess.Close()
	logger.Debug("session started", "session", sess.ID)

	port := &sessionPort{ctx: ctx, svc: svc, sess: sess, k: cfg.Search.TopK}
	embedderName := "none"
	if provider != nil {
		embedderName = provider.Name()
	}
	summary := fmt.Sprintf("embedder=%s store=%s", embedderName, cfg.VectorStore.Type)
	if c != nil {
		summary += fmt.Sprintf(" chunks=%d", c.Len())
	}
	m := tui.New(port, classify.Department, summary)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		logger.Error("tui exited", "err", err)
		os.Exit(1)
	}
}

func newProvider(cfg *config.AppConfig, logger *slog.Logger) (embedding.Provider, error) {
	var p embedding.Provider
	switch cfg.Embedder.Type {
	case "jina", "":
		jc := cfg.Embedder.Jina
		client, err := jina.NewClient(jina.Config{
			BaseURL:      jc.BaseURL,
			APIKeyEnv:    jc.APIKeyEnv,
			Model:        jc.Model,
			Task:         jc.Task,
			LateChunking: jc.LateChunking,
			Truncate:     jc.Truncate,
			Timeout:      time.Duration(jc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		p = client
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		p = client
	default:
		return nil, embedding.Fail(embedding.ErrConfiguration, "unknown embedder %q", cfg.Embedder.Type)
	}
	return embedding.NewResilient(p, cfg.Embedder.Retry.Policy(), logger), nil
}

func openCorpus(ctx context.Context, cfg *config.AppConfig) (*corpus.Corpus, error) {
	paths := cfg.Corpus.Paths()
	var index vectorstore.Index
	switch cfg.VectorStore.Type {
	case "memory", "":
		if _, err := os.Stat(paths.Index); err != nil {
			return nil, fmt.Errorf("%w: index %s", corpus.ErrArtifactMissing, paths.Index)
		}
		idx, err := memory.Load(paths.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", corpus.ErrDataIntegrity, err)
		}
		index = idx
	case "qdrant":
		qc := cfg.VectorStore.Qdrant
		idx, err := qdrant.Open(ctx, qdrant.Config{
			URL:        qc.URL,
			APIKey:     qc.APIKey,
			Collection: qc.Collection,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", corpus.ErrArtifactMissing, err)
		}
		index = idx
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore.Type)
	}
	return corpus.Load(paths, index)
}

func runBatch(ctx context.Context, w io.Writer, svc *service.RetrievalService, cfg *config.AppConfig, queries []string, withContext bool) error {
	results := svc.SearchSimilarBatch(ctx, queries, cfg.Search.TopK)
	if results == nil {
		return errors.New("embedding unavailable")
	}
	if withContext {
		for i, q := range queries {
			fmt.Fprintf(w, "### %s\n%s\n\n", q, service.BuildContext(results[i], cfg.Search.ContextResults, cfg.Search.ContextChars))
		}
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func runCheck(cfg *config.AppConfig) {
	keyEnv := cfg.Embedder.Jina.APIKeyEnv
	if cfg.Embedder.Type == "openai" {
		keyEnv = cfg.Embedder.OpenAI.APIKeyEnv
	}
	fmt.Printf("embedder: %s\n", cfg.Embedder.Type)
	fmt.Printf("  %s: %s\n", keyEnv, maskSecret(os.Getenv(keyEnv)))
	fmt.Printf("vector store: %s\n", cfg.VectorStore.Type)
	paths := cfg.Corpus.Paths()
	if cfg.VectorStore.Type == "qdrant" {
		paths.Index = ""
		fmt.Printf("  qdrant: %s/%s\n", cfg.VectorStore.Qdrant.URL, cfg.VectorStore.Qdrant.Collection)
	}
	fmt.Println("corpus:")
	for _, a := range corpus.Status(paths) {
		state := "ok"
		if !a.Present {
			state = "MISSING"
		}
		fmt.Printf("  %-8s %-7s %s\n", a.Name, state, a.Path)
	}
	if len(corpus.Missing(paths)) > 0 {
		fmt.Println("document search disabled until all artifacts exist")
	}
}

// maskSecret keeps the last four characters.
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// sessionPort binds the service to one interactive session for the TUI.
type sessionPort struct {
	ctx  context.Context
	svc  *service.RetrievalService
	sess *session.Session
	k    int
}

func (p *sessionPort) Search(q string) []domain.SearchResult {
	return p.svc.SearchSimilar(p.ctx, p.sess, q, p.k)
}

func (p *sessionPort) Unavailable() error { return p.svc.Unavailable() }
