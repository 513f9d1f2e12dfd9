// Package vector provides clients for the nearest-neighbor store. The
// store is an external collaborator; approximate search is never
// reimplemented here.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"recall/internal/port"
	"recall/internal/retry"
)

// HTTPIndex talks to a qdrant-style REST vector store. Writes and
// queries are rate limited and retried with backoff.
type HTTPIndex struct {
	baseURL    string
	collection string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
}

func NewHTTPIndex(baseURL, collection, apiKeyEnv string, rps int, policy retry.Policy) *HTTPIndex {
	if rps <= 0 {
		rps = 10
	}
	return &HTTPIndex{
		baseURL:    baseURL,
		collection: collection,
		apiKey:     os.Getenv(apiKeyEnv),
		client:     &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		policy:     policy,
	}
}

type upsertRequest struct {
	Points []point `json:"points"`
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type queryRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithVector  bool      `json:"with_vector"`
	WithPayload bool      `json:"with_payload"`
}

type queryResponse struct {
	Result []struct {
		ID      string         `json:"id"`
		Score   float64        `json:"score"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

type deleteRequest struct {
	Filter struct {
		Must []fieldMatch `json:"must"`
	} `json:"filter"`
}

type fieldMatch struct {
	Key   string `json:"key"`
	Match struct {
		Value string `json:"value"`
	} `json:"match"`
}

func (x *HTTPIndex) Upsert(ctx context.Context, items []port.VectorItem) error {
	if len(items) == 0 {
		return nil
	}

	points := make([]point, len(items))
	for i, item := range items {
		points[i] = point{
			ID:     item.ChunkID,
			Vector: item.Vector,
			Payload: map[string]any{
				"doc_id": item.DocID,
			},
		}
	}

	url := fmt.Sprintf("%s/collections/%s/points", x.baseURL, x.collection)
	return x.call(ctx, http.MethodPut, url, upsertRequest{Points: points}, nil)
}

func (x *HTTPIndex) Query(ctx context.Context, vector []float32, k int) ([]port.VectorMatch, error) {
	url := fmt.Sprintf("%s/collections/%s/points/search", x.baseURL, x.collection)
	req := queryRequest{Vector: vector, Limit: k, WithVector: true, WithPayload: true}

	var resp queryResponse
	if err := x.call(ctx, http.MethodPost, url, req, &resp); err != nil {
		return nil, err
	}

	matches := make([]port.VectorMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, port.VectorMatch{
			ChunkID:    r.ID,
			Similarity: r.Score,
			Vector:     r.Vector,
		})
	}
	return matches, nil
}

func (x *HTTPIndex) DeleteDoc(ctx context.Context, docID string) error {
	url := fmt.Sprintf("%s/collections/%s/points/delete", x.baseURL, x.collection)

	var req deleteRequest
	match := fieldMatch{Key: "doc_id"}
	match.Match.Value = docID
	req.Filter.Must = []fieldMatch{match}

	return x.call(ctx, http.MethodPost, url, req, nil)
}

func (x *HTTPIndex) call(ctx context.Context, method, url string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return x.policy.Do(ctx, func() error {
		if err := x.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if x.apiKey != "" {
			req.Header.Set("api-key", x.apiKey)
		}

		resp, err := x.client.Do(req)
		if err != nil {
			return fmt.Errorf("vector store request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("vector store returned status %d: %s", resp.StatusCode, string(respBody))
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to parse vector store response: %w", err)
			}
		}
		return nil
	})
}
