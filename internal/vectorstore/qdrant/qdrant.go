package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"rag-retrieval/internal/domain"
	"rag-retrieval/internal/vectorstore"
)

// Storage is a minimal read-only REST client to a Qdrant collection that was
// populated offline. Point ids are corpus positions.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	points     int
	distance   string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Open connects to the collection and reads its size, dimension and distance.
func Open(ctx context.Context, cfg Config) (*Storage, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}
	s := &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil, &info); err != nil {
		return nil, err
	}
	s.points = info.Result.PointsCount
	s.dimension = info.Result.Config.Params.Vectors.Size
	s.distance = info.Result.Config.Params.Vectors.Distance
	if s.dimension <= 0 {
		return nil, errors.New("qdrant collection reports invalid dimension")
	}
	return s, nil
}

// Len returns the number of points in the collection when it was opened.
func (s *Storage) Len() int { return s.points }

// Dimension returns the collection's vector size.
func (s *Storage) Dimension() int { return s.dimension }

// Search returns up to k hits nearest first. Similarity scores from Cosine and
// Dot collections are converted so that lower is always closer.
func (s *Storage) Search(ctx context.Context, vector domain.Vector, k int) ([]domain.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": false,
	}
	var resp struct {
		Result []struct {
			ID    json.RawMessage `json:"id"`
			Score float32         `json:"score"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		pos, err := strconv.Atoi(string(r.ID))
		if err != nil {
			return nil, fmt.Errorf("qdrant point id %s is not a corpus position", r.ID)
		}
		hits = append(hits, domain.Hit{Position: pos, Distance: s.toDistance(r.Score)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	return hits, nil
}

func (s *Storage) toDistance(score float32) float32 {
	switch s.distance {
	case "Cosine":
		return 1 - score
	case "Dot":
		return -score
	default: // Euclid, Manhattan
		return score
	}
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ vectorstore.Index = (*Storage)(nil)
