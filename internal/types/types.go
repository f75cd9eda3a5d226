package types

import (
	"context"

	"github.com/locallore/lore/internal/models"
)

// Embedder maps text to fixed-length vectors. EmbedBatch is order-preserving
// and returns one vector per input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer produces the final natural-language answer from a query and the
// retrieved context. Implementations must ground the answer in the supplied
// context only.
type Completer interface {
	Answer(ctx context.Context, query, docContext string) (string, error)
}

// WebResult is a single external search hit.
type WebResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearcher queries an external search provider, best result first.
type WebSearcher interface {
	Search(ctx context.Context, query string) ([]WebResult, error)
}

// VectorStore persists documents, chunks, and their vectors, and supports
// nearest-neighbor search by Euclidean distance.
//
// Concurrent readers are safe; concurrent writers require external
// serialization. SaveDocument is the unit of atomicity.
type VectorStore interface {
	Initialize(ctx context.Context) error
	SaveDocument(ctx context.Context, label string, chunks []models.Chunk, vectors [][]float32) (int64, error)
	Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error)
	Stats(ctx context.Context) (models.Stats, error)
	Close() error
}
