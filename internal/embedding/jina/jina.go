package jina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/embedding"
)

const (
	DefaultBaseURL = "https://api.jina.ai/v1"
	DefaultModel   = "jina-embeddings-v3"
	DefaultTask    = "retrieval.query"
)

var marshal = json.Marshal

// Client is a Jina AI embeddings client implementing the embedding provider contract.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	task         string
	lateChunking bool
	truncate     bool
	client       *http.Client
}

// Config configures the Jina embeddings client.
type Config struct {
	BaseURL      string
	APIKeyEnv    string
	APIKey       string // takes precedence over APIKeyEnv
	Model        string
	Task         string
	LateChunking bool
	Truncate     bool
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// NewClient creates a new embeddings client using the provided configuration.
// A missing credential is reported as a configuration failure.
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
	if cfg.Task == "" {
		cfg.Task = DefaultTask
	}
	hc := cfg.HTTPClient
	if hc == nil {
		t := cfg.Timeout
		if t == 0 {
			t = 30 * time.Second
		}
		hc = &http.Client{Timeout: t}
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       key,
		model:        cfg.Model,
		task:         cfg.Task,
		lateChunking: cfg.LateChunking,
		truncate:     cfg.Truncate,
		client:       hc,
	}, nil
}

// Name returns the identifier of this provider implementation.
func (c *Client) Name() string { return "jina" }

// EmbedOne returns an embedding vector for the given text.
func (c *Client) EmbedOne(ctx context.Context, text string) (domain.Vector, error) {
	vecs, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type request struct {
	Model        string   `json:"model"`
	Task         string   `json:"task"`
	LateChunking bool     `json:"late_chunking"`
	Truncate     bool     `json:"truncate"`
	Input        []string `json:"input"`
}

type response struct {
	Data []struct {
		Index     *int      `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedMany embeds all texts in one remote call. Either every vector is
// returned, in input order, or none is.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([]domain.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := marshal(request{
		Model:        c.model,
		Task:         c.task,
		LateChunking: c.lateChunking,
		Truncate:     c.truncate,
		Input:        texts,
	})
	if err != nil {
		return nil, embedding.Fail(embedding.ErrMalformedResponse, "encode request: %v", err)
	}
	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, embedding.Fail(embedding.ErrConfiguration, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, embedding.Fail(embedding.ErrTransport, "%v", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, embedding.Fail(embedding.ErrTransport, "read response: %v", err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, embedding.Fail(embedding.ErrConfiguration, "jina embeddings rejected credential: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, embedding.Fail(embedding.ErrTransport, "jina embeddings failed: %s: %s", resp.Status, truncate(payload, 200))
	}
	return decode(payload, len(texts))
}

func decode(payload []byte, want int) ([]domain.Vector, error) {
	var out response
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, embedding.Fail(embedding.ErrMalformedResponse, "decode: %v", err)
	}
	if len(out.Data) != want {
		return nil, embedding.Fail(embedding.ErrMalformedResponse, "expected %d embeddings, got %d", want, len(out.Data))
	}
	vecs := make([]domain.Vector, want)
	for i, item := range out.Data {
		if len(item.Embedding) == 0 {
			return nil, embedding.Fail(embedding.ErrMalformedResponse, "entry %d has no embedding", i)
		}
		pos := i
		if item.Index != nil {
			pos = *item.Index
		}
		if pos < 0 || pos >= want || vecs[pos] != nil {
			return nil, embedding.Fail(embedding.ErrMalformedResponse, "entry %d has invalid index %d", i, pos)
		}
		vecs[pos] = item.Embedding
	}
	return vecs, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ embedding.Provider = (*Client)(nil)
