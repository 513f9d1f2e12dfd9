package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"recall/internal/port"
)

// CohereCrossEncoder scores query-passage pairs with Cohere's rerank
// endpoint. Returned scores align with the input passage order.
type CohereCrossEncoder struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type cohereRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
}

type cohereRerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

func NewCohereCrossEncoder(apiKeyEnv, model, baseURL string) (*CohereCrossEncoder, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	if model == "" {
		model = "rerank-english-v3.0"
	}
	if baseURL == "" {
		baseURL = "https://api.cohere.ai/v1"
	}
	return &CohereCrossEncoder{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
	}, nil
}

func (r *CohereCrossEncoder) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	jsonData, err := json.Marshal(cohereRerankRequest{
		Query:     query,
		Documents: passages,
		Model:     r.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank API returned status %d: %s", resp.StatusCode, string(body))
	}

	var rerankResp cohereRerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}

	scores := make([]float64, len(passages))
	for _, res := range rerankResp.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.RelevanceScore
		}
	}
	return scores, nil
}

func (r *CohereCrossEncoder) ModelName() string {
	return r.model
}

// LazyCrossEncoder defers client construction to first use, so queries
// that never reach reranking do not pay for it and a missing API key
// only degrades queries that need the model.
type LazyCrossEncoder struct {
	build func() (port.CrossEncoder, error)

	once    sync.Once
	inner   port.CrossEncoder
	initErr error
}

func NewLazyCrossEncoder(build func() (port.CrossEncoder, error)) *LazyCrossEncoder {
	return &LazyCrossEncoder{build: build}
}

func (l *LazyCrossEncoder) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	l.once.Do(func() {
		l.inner, l.initErr = l.build()
	})
	if l.initErr != nil {
		return nil, fmt.Errorf("cross-encoder unavailable: %w", l.initErr)
	}
	return l.inner.Score(ctx, query, passages)
}

func (l *LazyCrossEncoder) ModelName() string {
	l.once.Do(func() {
		l.inner, l.initErr = l.build()
	})
	if l.initErr != nil {
		return "unavailable"
	}
	return l.inner.ModelName()
}
