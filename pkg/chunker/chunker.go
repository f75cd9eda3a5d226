package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/locallore/lore/internal/models"
)

// end-of-sentence punctuation, optionally quoted, followed by whitespace or
// end of string
var sentenceEndRe = regexp.MustCompile(`[^.!?]+[.!?]+["']?(\s+|$)`)

var boundaryRe = regexp.MustCompile(`[.!?]\s+`)

type ChunkerConfig struct {
	TargetSize     int // nominal chunk size in characters
	OverlapPercent int // share of a closed chunk carried into the next one
}

// SemanticChunker splits raw text into overlapping, size-bounded passages
// aligned to sentence boundaries. A single sentence longer than TargetSize is
// kept whole, so chunks may exceed the nominal bound in that case.
type SemanticChunker struct {
	config      ChunkerConfig
	overlapSize int
}

func NewWithConfig(config ChunkerConfig) *SemanticChunker {
	if config.TargetSize <= 0 {
		config.TargetSize = 500
	}
	if config.OverlapPercent < 0 || config.OverlapPercent >= 100 {
		config.OverlapPercent = 15
	}

	return &SemanticChunker{
		config:      config,
		overlapSize: config.TargetSize * config.OverlapPercent / 100,
	}
}

func New() *SemanticChunker {
	return NewWithConfig(ChunkerConfig{})
}

// Chunk splits text into ordered chunks indexed from 0. Empty or
// whitespace-only input yields nil.
func (c *SemanticChunker) Chunk(text string) []models.Chunk {
	sentences := c.splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []models.Chunk
	current := strings.Builder{}

	emit := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed == "" {
			return
		}
		chunks = append(chunks, models.Chunk{
			Index: len(chunks),
			Text:  trimmed,
			Size:  len(trimmed),
		})
	}

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence) > c.config.TargetSize {
			tail := c.overlapTail(current.String())
			emit()
			current.Reset()
			current.WriteString(tail)
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}

	emit()

	return chunks
}

func (c *SemanticChunker) splitIntoSentences(text string) []string {
	var sentences []string
	last := 0

	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		s := strings.TrimSpace(text[loc[0]:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}

	// trailing text without closing punctuation is still a sentence
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}

	return sentences
}

// overlapTail returns the trailing part of a closed chunk that seeds the next
// one. The tail is trimmed forward to the nearest sentence boundary inside it
// so overlaps start cleanly at a sentence when possible.
func (c *SemanticChunker) overlapTail(text string) string {
	if c.overlapSize == 0 {
		return ""
	}
	if len(text) <= c.overlapSize {
		return strings.TrimSpace(text)
	}

	start := len(text) - c.overlapSize
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	tail := text[start:]

	if loc := boundaryRe.FindStringIndex(tail); loc != nil {
		return strings.TrimSpace(tail[loc[1]:])
	}

	return strings.TrimSpace(tail)
}
