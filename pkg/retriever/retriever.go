// Package retriever orchestrates the query path of the knowledge base:
// embed the query, search the store, filter by relevance, and fall back to
// an external search provider when the local store has nothing useful.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/locallore/lore/internal/models"
	"github.com/locallore/lore/internal/types"
	"github.com/locallore/lore/pkg/chunker"
)

type Config struct {
	// RelevanceThreshold is the maximum Euclidean distance at which a
	// candidate counts as a trustworthy match. It is embedding-model
	// specific and must be tuned per provider; there is no sensible
	// universal default, so it is required.
	RelevanceThreshold float64

	SearchK     int // candidates fetched from the store, over-fetched past TopK
	TopK        int // candidates kept for answer context
	MaxQuoteLen int // source quote bound, ellipsized past this
}

// Retriever answers natural-language queries against a vector store and
// grows the store from external search results when local knowledge runs
// out.
type Retriever struct {
	embedder types.Embedder
	store    types.VectorStore
	chunker  *chunker.SemanticChunker
	complete types.Completer
	searcher types.WebSearcher
	config   Config
	logger   *zap.Logger
}

type Option func(*Retriever)

// WithCompleter sets the completion provider used for answer synthesis.
// Without one, answers are the raw best-matching chunk text.
func WithCompleter(c types.Completer) Option {
	return func(r *Retriever) { r.complete = c }
}

// WithSearcher enables the external search fallback and self-augmentation.
func WithSearcher(s types.WebSearcher) Option {
	return func(r *Retriever) { r.searcher = s }
}

// WithLogger sets a logger for query diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

func New(embedder types.Embedder, store types.VectorStore, splitter *chunker.SemanticChunker, config Config, opts ...Option) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store must not be nil")
	}
	if config.RelevanceThreshold <= 0 {
		return nil, fmt.Errorf("relevance threshold must be positive")
	}
	if config.SearchK <= 0 {
		config.SearchK = 10
	}
	if config.TopK <= 0 {
		config.TopK = 3
	}
	if config.TopK > config.SearchK {
		config.SearchK = config.TopK
	}
	if config.MaxQuoteLen <= 0 {
		config.MaxQuoteLen = 300
	}
	if splitter == nil {
		splitter = chunker.New()
	}

	r := &Retriever{
		embedder: embedder,
		store:    store,
		chunker:  splitter,
		config:   config,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Ingest chunks text, embeds the chunks in sequential batches, and persists
// them under label. Returns the document id and the chunk count.
func (r *Retriever) Ingest(ctx context.Context, label, text string) (int64, int, error) {
	chunks := r.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, 0, fmt.Errorf("no chunks produced from %q", label)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embedding %q: %w", label, err)
	}

	documentID, err := r.store.SaveDocument(ctx, label, chunks, vectors)
	if err != nil {
		return 0, 0, fmt.Errorf("saving %q: %w", label, err)
	}

	r.logger.Info("document ingested",
		zap.String("label", label),
		zap.Int64("document_id", documentID),
		zap.Int("chunks", len(chunks)))

	return documentID, len(chunks), nil
}

// Query answers q from the store. Candidates past the relevance threshold
// win; if every candidate fails the threshold the unfiltered top results are
// used and the answer is marked degraded; if the store has no candidates at
// all the external searcher is consulted and its best result is persisted
// for future queries. A NotFound answer is a value, never an error.
func (r *Retriever) Query(ctx context.Context, q string) (*models.Answer, error) {
	queryVec, err := r.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := r.store.Search(ctx, queryVec, r.config.SearchK)
	if err != nil {
		return nil, fmt.Errorf("searching store: %w", err)
	}

	var relevant []models.SearchResult
	for _, c := range candidates {
		if c.Distance < r.config.RelevanceThreshold {
			relevant = append(relevant, c)
		}
	}

	diag := models.Diagnostics{
		TotalCandidates:    len(candidates),
		RelevantCandidates: len(relevant),
	}

	if len(candidates) == 0 {
		r.logger.Info("no local candidates, trying web fallback", zap.String("query", q))
		return r.webFallback(ctx, q, diag)
	}

	top := relevant
	degraded := false
	if len(top) == 0 {
		// best-effort answer from the raw nearest candidates
		top = candidates
		degraded = true
		r.logger.Info("all candidates failed relevance threshold",
			zap.String("query", q),
			zap.Float64("threshold", r.config.RelevanceThreshold),
			zap.Float64("nearest_distance", candidates[0].Distance))
	}
	if len(top) > r.config.TopK {
		top = top[:r.config.TopK]
	}

	best := top[0]
	content, err := r.synthesize(ctx, q, buildContext(top), best.Text)
	if err != nil {
		return nil, err
	}

	r.logger.Info("query answered locally",
		zap.String("query", q),
		zap.String("source", best.DocumentLabel),
		zap.Float64("distance", best.Distance),
		zap.Bool("degraded", degraded))

	return &models.Answer{
		Found:   true,
		Content: content,
		Source: &models.Source{
			Label: best.DocumentLabel,
			Quote: r.quote(best.Text),
		},
		Diagnostics: diag,
		Degraded:    degraded,
	}, nil
}

// webFallback consults the external searcher and folds the best result back
// into the store as a one-chunk document, so semantically identical future
// queries are served locally.
func (r *Retriever) webFallback(ctx context.Context, q string, diag models.Diagnostics) (*models.Answer, error) {
	if r.searcher == nil {
		return &models.Answer{Diagnostics: diag}, nil
	}

	results, err := r.searcher.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("external search: %w", err)
	}
	if len(results) == 0 {
		r.logger.Info("external search found nothing", zap.String("query", q))
		return &models.Answer{Diagnostics: diag}, nil
	}

	best := results[0]
	text := best.Title + "\n\n" + best.Snippet

	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding web result: %w", err)
	}

	chunk := models.Chunk{Index: 0, Text: text, Size: len(text)}
	label := "web_" + best.URL
	if _, err := r.store.SaveDocument(ctx, label, []models.Chunk{chunk}, [][]float32{vec}); err != nil {
		return nil, fmt.Errorf("persisting web result: %w", err)
	}

	r.logger.Info("web result persisted",
		zap.String("query", q),
		zap.String("url", best.URL))

	content, err := r.synthesize(ctx, q, text, text)
	if err != nil {
		return nil, err
	}

	return &models.Answer{
		Found:   true,
		Content: content,
		Source: &models.Source{
			Label: best.Title,
			URL:   best.URL,
			Quote: r.quote(best.Snippet),
		},
		Diagnostics: diag,
		Augmented:   true,
	}, nil
}

func (r *Retriever) synthesize(ctx context.Context, q, docContext, fallback string) (string, error) {
	if r.complete == nil {
		return fallback, nil
	}
	content, err := r.complete.Answer(ctx, q, docContext)
	if err != nil {
		return "", fmt.Errorf("completing answer: %w", err)
	}
	return content, nil
}

func (r *Retriever) quote(text string) string {
	if len(text) <= r.config.MaxQuoteLen {
		return text
	}
	cut := r.config.MaxQuoteLen
	for cut > 0 && text[cut]&0xC0 == 0x80 { // don't cut mid-rune
		cut--
	}
	return text[:cut] + "..."
}

func buildContext(results []models.SearchResult) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = fmt.Sprintf("Fragment %d:\n%s", i+1, res.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
