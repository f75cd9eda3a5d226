package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbeddingClient struct {
	calls      int
	batchSizes []int
	fail       bool
}

func (s *stubEmbeddingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	s.batchSizes = append(s.batchSizes, len(texts))
	if s.fail {
		return nil, fmt.Errorf("provider unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i])), 0, 0}
	}
	return vectors, nil
}

func TestEmbedBatch_SplitsIntoSequentialBatches(t *testing.T) {
	client := &stubEmbeddingClient{}
	e := &Embedder{
		config: EmbedderConfig{BatchSize: 2},
		client: client,
	}

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []int{2, 2, 1}, client.batchSizes)

	// order preserved
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	client := &stubEmbeddingClient{}
	e := &Embedder{
		config: EmbedderConfig{BatchSize: 500},
		client: client,
	}

	vectors, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, client.calls)
}

func TestEmbed_ProviderErrorPropagates(t *testing.T) {
	e := &Embedder{
		config: EmbedderConfig{BatchSize: 500},
		client: &stubEmbeddingClient{fail: true},
	}

	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embeddings")
}

func TestNewEmbedderWithConfig_UnknownProvider(t *testing.T) {
	_, err := NewEmbedderWithConfig(EmbedderConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
}

func TestNewEmbedderWithConfig_Defaults(t *testing.T) {
	e, err := NewEmbedderWithConfig(EmbedderConfig{})
	require.NoError(t, err)
	assert.Equal(t, "ollama", e.config.Provider)
	assert.Equal(t, 500, e.config.BatchSize)
}
