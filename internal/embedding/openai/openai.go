package openai

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	oai "github.com/sashabaranov/go-openai"

	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/embedding"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
)

// Client embeds text through any OpenAI-compatible embeddings endpoint.
type Client struct {
	client *oai.Client
	model  string
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	APIKey     string // takes precedence over APIKeyEnv
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, embedding.Fail(embedding.ErrConfiguration, "missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	occ := oai.DefaultConfig(key)
	occ.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		occ.HTTPClient = cfg.HTTPClient
	} else {
		t := cfg.Timeout
		if t == 0 {
			t = 30 * time.Second
		}
		occ.HTTPClient = &http.Client{Timeout: t}
	}
	return &Client{client: oai.NewClientWithConfig(occ), model: cfg.Model}, nil
}

// Name returns the identifier of this provider implementation.
func (c *Client) Name() string { return "openai" }

// EmbedOne returns an embedding vector for the given text.
func (c *Client) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds all texts in one request; the result is all-or-nothing.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, oai.EmbeddingRequest{
		Model: oai.EmbeddingModel(c.model),
		Input: texts,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, embedding.Fail(embedding.ErrMalformedResponse, "expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	vecs := make([]domain.Vector, len(texts))
	for i, item := range resp.Data {
		if len(item.Embedding) == 0 {
			return nil, embedding.Fail(embedding.ErrMalformedResponse, "entry %d has no embedding", i)
		}
		if item.Index < 0 || item.Index >= len(texts) || vecs[item.Index] != nil {
			return nil, embedding.Fail(embedding.ErrMalformedResponse, "entry %d has invalid index %d", i, item.Index)
		}
		vecs[item.Index] = item.Embedding
	}
	return vecs, nil
}

func classify(err error) error {
	status := 0
	var apiErr *oai.APIError
	var reqErr *oai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return embedding.Fail(embedding.ErrConfiguration, "openai embeddings rejected credential: %v", err)
	}
	return embedding.Fail(embedding.ErrTransport, "openai embeddings failed: %v", err)
}

var _ embedding.Provider = (*Client)(nil)
