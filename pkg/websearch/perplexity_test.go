package websearch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locallore/lore/pkg/websearch"
)

func TestPerplexity_Search(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		assert.Equal(t, "/search", r.URL.Path)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"title": "Best hit", "url": "https://example.com/a", "snippet": "the answer"},
				{"title": "Second hit", "url": "https://example.com/b", "snippet": "more detail"},
			},
		})
	}))
	defer srv.Close()

	p, err := websearch.NewPerplexity(websearch.PerplexityConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "what is the answer")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "what is the answer", gotBody["query"])

	require.Len(t, results, 2)
	assert.Equal(t, "Best hit", results[0].Title)
	assert.Equal(t, "https://example.com/a", results[0].URL)
	assert.Equal(t, "the answer", results[0].Snippet)
}

func TestPerplexity_SearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	}))
	defer srv.Close()

	p, err := websearch.NewPerplexity(websearch.PerplexityConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	results, err := p.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPerplexity_SearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := websearch.NewPerplexity(websearch.PerplexityConfig{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.Search(context.Background(), "anything")
	require.Error(t, err)
}

func TestNewPerplexity_RequiresKey(t *testing.T) {
	_, err := websearch.NewPerplexity(websearch.PerplexityConfig{})
	require.Error(t, err)
}
