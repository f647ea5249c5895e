package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/embedding"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_TEST_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "OPENAI_TEST_KEY"})
	assert.ErrorIs(t, err, embedding.ErrConfiguration)
}

func TestEmbedMany(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body.Model)
		assert.Equal(t, []string{"a", "b"}, body.Input)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0.3,0.4]},
			{"object":"embedding","index":0,"embedding":[0.1,0.2]}
		],"model":"text-embedding-3-small","usage":{"prompt_tokens":2,"total_tokens":2}}`))
	})

	vecs, err := c.EmbedMany(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []domain.Vector{{0.1, 0.2}, {0.3, 0.4}}, vecs)
}

func TestEmbedOne_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	})
	_, err := c.EmbedOne(context.Background(), "q")
	assert.ErrorIs(t, err, embedding.ErrConfiguration)
}

func TestEmbedOne_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream","type":"server_error"}}`))
	})
	_, err := c.EmbedOne(context.Background(), "q")
	assert.ErrorIs(t, err, embedding.ErrTransport)
}

func TestEmbedMany_ShortResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[1]}]}`))
	})
	vecs, err := c.EmbedMany(context.Background(), []string{"a", "b"})
	assert.Nil(t, vecs)
	assert.ErrorIs(t, err, embedding.ErrMalformedResponse)
}
