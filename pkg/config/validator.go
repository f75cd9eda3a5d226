package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Embeddings.Provider != "ollama" && c.Embeddings.Provider != "openai" {
		errors = append(errors, ValidationError{
			Field:   "embeddings.provider",
			Message: fmt.Sprintf("unknown provider %q", c.Embeddings.Provider),
		})
	}

	if c.Embeddings.BatchSize < 1 || c.Embeddings.BatchSize > 2048 {
		errors = append(errors, ValidationError{
			Field:   "embeddings.batch_size",
			Message: "batch_size must be between 1 and 2048",
		})
	}

	if c.Embeddings.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embeddings.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.LLM.Provider != "ollama" && c.LLM.Provider != "openai" {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be positive",
		})
	}

	if c.LLM.Temperature != nil && (*c.LLM.Temperature < 0 || *c.LLM.Temperature > 2) {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	switch c.Database.Backend {
	case "sqlite":
		if c.Database.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "database.path",
				Message: "path is required for the sqlite backend",
			})
		}
	case "postgres":
		if c.Database.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "url is required for the postgres backend",
			})
		} else if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "database.backend",
			Message: fmt.Sprintf("unknown backend %q", c.Database.Backend),
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Chunker.TargetSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.target_size",
			Message: "target_size must be positive",
		})
	}

	if c.Chunker.OverlapPercent < 0 || c.Chunker.OverlapPercent >= 100 {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap_percent",
			Message: "overlap_percent must be between 0 and 99",
		})
	}

	// The threshold is model-specific; forcing an explicit value avoids
	// silently reusing a constant tuned for a different embedding space.
	if c.Retriever.RelevanceThreshold <= 0 {
		errors = append(errors, ValidationError{
			Field:   "retriever.relevance_threshold",
			Message: "relevance_threshold must be set to a positive distance for the configured embedding model",
		})
	}

	if c.Retriever.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retriever.SearchK < c.Retriever.TopK {
		errors = append(errors, ValidationError{
			Field:   "retriever.search_k",
			Message: "search_k must be at least top_k",
		})
	}

	if c.Retriever.MaxQuoteLen < 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.max_quote_len",
			Message: "max_quote_len must be positive",
		})
	}

	return errors
}
