package models

import "time"

// Document is one ingested source of text, identified by a human-readable label.
type Document struct {
	ID        int64
	Label     string
	CreatedAt time.Time
}

// Chunk is a bounded passage of a document, the unit of retrieval.
type Chunk struct {
	Index int
	Text  string
	Size  int
}

// SearchResult is a transient projection produced at query time.
// Distance is Euclidean; smaller means more similar.
type SearchResult struct {
	Text          string
	Distance      float64
	DocumentLabel string
	ChunkIndex    int
}

// Stats is a read-only snapshot of store contents.
type Stats struct {
	Documents int
	Chunks    int
	Vectors   int
}

// Source attributes an answer to the chunk it came from.
type Source struct {
	Label string
	Quote string
	URL   string
}

// Diagnostics reports how the relevance filter behaved for one query.
type Diagnostics struct {
	TotalCandidates    int
	RelevantCandidates int
}

// Answer is the result of one retrieval query. Found=false is a valid
// outcome, not an error. Degraded marks answers built from candidates that
// all failed the relevance threshold; Augmented marks answers built from a
// freshly persisted web result.
type Answer struct {
	Found       bool
	Content     string
	Source      *Source
	Diagnostics Diagnostics
	Degraded    bool
	Augmented   bool
}
