// Package websearch provides external web search providers used as a
// retrieval fallback.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/locallore/lore/internal/types"
)

type PerplexityConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
}

// Perplexity queries the Perplexity search API and returns results best
// first.
type Perplexity struct {
	config PerplexityConfig
	client *http.Client
}

func NewPerplexity(config PerplexityConfig) (*Perplexity, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("perplexity API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.perplexity.ai"
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Perplexity{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (p *Perplexity) Search(ctx context.Context, query string) ([]types.WebResult, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query":       query,
		"max_results": p.config.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perplexity search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("perplexity search failed: %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	var out struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"results"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	results := make([]types.WebResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, types.WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Snippet,
		})
	}

	return results, nil
}
