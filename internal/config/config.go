package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"rag-retrieval/internal/corpus"
	"rag-retrieval/internal/embedding"
	"rag-retrieval/internal/embedding/cache"
	"rag-retrieval/internal/embedding/jina"
	"rag-retrieval/internal/embedding/openai"
	"rag-retrieval/internal/merger"
)

// JinaEmbedderConfig holds configuration for the Jina embeddings endpoint.
type JinaEmbedderConfig struct {
	BaseURL      string `yaml:"base_url" env:"RAG_JINA_BASE_URL"`
	APIKeyEnv    string `yaml:"api_key_env"`
	Model        string `yaml:"model" env:"RAG_JINA_MODEL"`
	Task         string `yaml:"task"`
	LateChunking bool   `yaml:"late_chunking"`
	Truncate     bool   `yaml:"truncate"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" env:"RAG_OPENAI_BASE_URL"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model" env:"RAG_OPENAI_MODEL"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RetryConfig bounds the retries around the embedding provider.
// A nil MaxRetries means the default; zero disables retries.
type RetryConfig struct {
	MaxRetries          *int   `yaml:"max_retries,omitempty"`
	AttemptTimeoutSecs  int    `yaml:"attempt_timeout_secs"`
	InitialIntervalMs   int    `yaml:"initial_interval_ms"`
	MaxIntervalMs       int    `yaml:"max_interval_ms"`
	MaxElapsedSecs      int    `yaml:"max_elapsed_secs"`
	BreakerFailures     uint32 `yaml:"breaker_failures"`
	BreakerCooldownSecs int    `yaml:"breaker_cooldown_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string               `yaml:"type" env:"RAG_EMBEDDER"`
	Jina   JinaEmbedderConfig   `yaml:"jina"`
	OpenAI OpenAIEmbedderConfig `yaml:"openai"`
	Retry  RetryConfig          `yaml:"retry"`
}

// CacheConfig sizes the per-session embedding cache.
type CacheConfig struct {
	Capacity int `yaml:"capacity" env:"RAG_CACHE_CAPACITY"`
}

// CorpusConfig locates the prebuilt artifacts. Relative file names resolve against Dir.
type CorpusConfig struct {
	Dir          string `yaml:"dir" env:"RAG_CORPUS_DIR"`
	IndexPath    string `yaml:"index"`
	MetadataPath string `yaml:"metadata"`
	ChunksPath   string `yaml:"chunks"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string       `yaml:"type" env:"RAG_VECTOR_STORE"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" env:"RAG_QDRANT_URL"`
	APIKey      string `yaml:"api_key" env:"RAG_QDRANT_API_KEY"`
	Collection  string `yaml:"collection" env:"RAG_QDRANT_COLLECTION"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MergeConfig configures the offline chunk merge.
type MergeConfig struct {
	TargetLen int `yaml:"target_len"`
}

// SearchConfig tunes the query path.
type SearchConfig struct {
	TopK           int `yaml:"top_k" env:"RAG_TOP_K"`
	ContextResults int `yaml:"context_results"`
	ContextChars   int `yaml:"context_chars"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"RAG_LOG_LEVEL"`
	Format string `yaml:"format" env:"RAG_LOG_FORMAT"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Cache       CacheConfig       `yaml:"cache"`
	Corpus      CorpusConfig      `yaml:"corpus"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Merge       MergeConfig       `yaml:"merge"`
	Search      SearchConfig      `yaml:"search"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment variables override file values.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, applyEnv(cfg)
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag-retrieval/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Paths resolves the artifact locations.
func (c CorpusConfig) Paths() corpus.Paths {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(c.Dir, p)
	}
	return corpus.Paths{
		Index:    resolve(c.IndexPath),
		Metadata: resolve(c.MetadataPath),
		Chunks:   resolve(c.ChunksPath),
	}
}

// Policy converts the retry section to the provider decorator's policy.
func (r RetryConfig) Policy() embedding.RetryPolicy {
	p := embedding.DefaultRetryPolicy()
	if r.MaxRetries != nil {
		p.MaxRetries = *r.MaxRetries
	}
	if r.AttemptTimeoutSecs > 0 {
		p.AttemptTimeout = time.Duration(r.AttemptTimeoutSecs) * time.Second
	}
	if r.InitialIntervalMs > 0 {
		p.InitialInterval = time.Duration(r.InitialIntervalMs) * time.Millisecond
	}
	if r.MaxIntervalMs > 0 {
		p.MaxInterval = time.Duration(r.MaxIntervalMs) * time.Millisecond
	}
	if r.MaxElapsedSecs > 0 {
		p.MaxElapsedTime = time.Duration(r.MaxElapsedSecs) * time.Second
	}
	if r.BreakerFailures > 0 {
		p.BreakerFailures = r.BreakerFailures
	}
	if r.BreakerCooldownSecs > 0 {
		p.BreakerCooldown = time.Duration(r.BreakerCooldownSecs) * time.Second
	}
	return p
}

func applyEnv(cfg *AppConfig) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag-retrieval", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "jina"},
		VectorStore: VectorStoreConfig{Type: "memory"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "jina"
	}
	if cfg.Embedder.Jina.APIKeyEnv == "" {
		cfg.Embedder.Jina.APIKeyEnv = "JINA_API_KEY"
	}
	if cfg.Embedder.Jina.Model == "" {
		cfg.Embedder.Jina.Model = jina.DefaultModel
	}
	if cfg.Embedder.Jina.Task == "" {
		cfg.Embedder.Jina.Task = jina.DefaultTask
	}
	if cfg.Embedder.Jina.TimeoutSecs == 0 {
		cfg.Embedder.Jina.TimeoutSecs = 30
	}
	if cfg.Embedder.OpenAI.BaseURL == "" {
		cfg.Embedder.OpenAI.BaseURL = openai.DefaultBaseURL
	}
	if cfg.Embedder.OpenAI.APIKeyEnv == "" {
		cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.OpenAI.Model == "" {
		cfg.Embedder.OpenAI.Model = openai.DefaultModel
	}
	if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
		cfg.Embedder.OpenAI.TimeoutSecs = 30
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = cache.DefaultCapacity
	}
	if cfg.Corpus.Dir == "" {
		cfg.Corpus.Dir = "extracted"
	}
	if cfg.Corpus.IndexPath == "" {
		cfg.Corpus.IndexPath = "faiss_index.gob"
	}
	if cfg.Corpus.MetadataPath == "" {
		cfg.Corpus.MetadataPath = "faiss_metadata.json"
	}
	if cfg.Corpus.ChunksPath == "" {
		cfg.Corpus.ChunksPath = "chunks.json"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 10
	}
	if cfg.Merge.TargetLen == 0 {
		cfg.Merge.TargetLen = merger.DefaultTargetLen
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 50
	}
	if cfg.Search.ContextResults == 0 {
		cfg.Search.ContextResults = 3
	}
	if cfg.Search.ContextChars == 0 {
		cfg.Search.ContextChars = 800
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
