package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QdrantStore is a minimal REST client to Qdrant.
type QdrantStore struct {
	url    string
	apiKey string
	client *http.Client
}

func NewQdrantStore(url, apiKey string) *QdrantStore {
	return &QdrantStore{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *QdrantStore) Exists(ctx context.Context, name string) (bool, error) {
	status, _, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", name), nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("qdrant collection check failed: status %d", status)
	}
}

func (s *QdrantStore) Create(ctx context.Context, name string, dimension int, distance string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": distance,
		},
	}
	status, resp, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", name), body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant create collection %s failed: status %d: %s", name, status, resp)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, name string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	payloadPoints := make([]map[string]any, len(points))
	for i, p := range points {
		payloadPoints[i] = map[string]any{
			"id":     p.ID,
			"vector": p.Vector,
			"payload": map[string]any{
				"text":     p.Payload.Text,
				"source":   p.Payload.Source,
				"page":     p.Payload.Page,
				"chunk_id": p.Payload.ChunkID,
				"preview":  p.Payload.Preview,
			},
		}
	}
	body := map[string]any{"points": payloadPoints}
	status, resp, err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", name), body)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert into %s failed: status %d: %s", name, status, resp)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 4
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	status, resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", name), body)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search in %s failed: status %d: %s", name, status, resp)
	}

	var out struct {
		Result []struct {
			Score   float32 `json:"score"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("qdrant search response: %w", err)
	}

	hits := make([]Hit, 0, len(out.Result))
	for _, r := range out.Result {
		hits = append(hits, Hit{Payload: r.Payload, Score: r.Score})
	}
	return hits, nil
}

func (s *QdrantStore) Delete(ctx context.Context, name string) error {
	status, resp, err := s.do(ctx, http.MethodDelete, fmt.Sprintf("/collections/%s", name), nil)
	if err != nil {
		return err
	}
	// deleting an absent collection is not an error
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("qdrant delete collection %s failed: status %d: %s", name, status, resp)
	}
	return nil
}

func (s *QdrantStore) Count(ctx context.Context, name string) (int, error) {
	body := map[string]any{"exact": true}
	status, resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", name), body)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		return 0, fmt.Errorf("qdrant count in %s failed: status %d: %s", name, status, resp)
	}

	var out struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return 0, fmt.Errorf("qdrant count response: %w", err)
	}
	return out.Result.Count, nil
}

func (s *QdrantStore) List(ctx context.Context) ([]string, error) {
	status, resp, err := s.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant list collections failed: status %d: %s", status, resp)
	}

	var out struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("qdrant list response: %w", err)
	}

	names := make([]string, 0, len(out.Result.Collections))
	for _, c := range out.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *QdrantStore) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.url+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}
