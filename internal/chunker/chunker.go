// Package chunker splits extracted page text into token-bounded chunks
// with single-paragraph overlap between consecutive chunks.
package chunker

import (
	"errors"
	"regexp"
	"strings"

	"github.com/hackhunters/docqa/pkg/models"
)

// Config holds chunking configuration.
type Config struct {
	// MaxChunkTokens is the token budget a chunk may not exceed by
	// accumulation. The overlap paragraph seeded into the next chunk
	// is added on top of this budget, not counted against it, so an
	// emitted chunk may carry up to MaxChunkTokens + OverlapTokens.
	MaxChunkTokens int
	// OverlapTokens is the nominal allowance for the overlap seed.
	OverlapTokens int
}

// Chunker produces ordered chunks from ordered pages. It is a pure
// function of its inputs and configuration.
type Chunker struct {
	config    Config
	tokenizer Tokenizer
}

// New creates a new Chunker.
func New(config Config, tokenizer Tokenizer) (*Chunker, error) {
	if config.MaxChunkTokens <= 0 {
		return nil, errors.New("max chunk tokens must be > 0")
	}
	if config.OverlapTokens < 0 {
		return nil, errors.New("overlap tokens must be >= 0")
	}
	if tokenizer == nil {
		return nil, errors.New("tokenizer is required")
	}
	return &Chunker{config: config, tokenizer: tokenizer}, nil
}

var paragraphSplit = regexp.MustCompile(`\n[ \t]*\n+`)

// splitParagraphs splits page text on blank-line boundaries and drops
// whitespace-only paragraphs.
func splitParagraphs(text string) []string {
	raw := paragraphSplit.Split(text, -1)
	paragraphs := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// Chunk walks the pages in order and accumulates paragraphs into
// chunks under the token budget. When a paragraph would push the
// running count over the budget, the current chunk is emitted and the
// next chunk is seeded with the emitted chunk's last paragraph
// followed by the new paragraph. A single paragraph larger than the
// budget is emitted verbatim as its own oversized chunk; no further
// splitting happens.
//
// The accumulator and the char-offset cursor reset at each page
// boundary; overlap never carries across pages. Chunk ids use a
// document-global index that is never reset.
func (c *Chunker) Chunk(documentID string, pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	index := 0

	for _, page := range pages {
		paragraphs := splitParagraphs(page.Text)
		if len(paragraphs) == 0 {
			continue
		}

		var current []string
		currentTokens := 0
		// Running cursor over emitted chunk text lengths within this
		// page. Offsets are page-relative by contract, not offsets
		// into the original page text.
		cursor := 0

		emit := func(pageNumber int) {
			text := strings.Join(current, "\n\n")
			chunks = append(chunks, models.Chunk{
				ChunkID:    models.ChunkID(documentID, index),
				DocumentID: documentID,
				Text:       text,
				PageNumber: pageNumber,
				CharStart:  cursor,
				CharEnd:    cursor + len(text),
				TokenCount: currentTokens,
			})
			cursor += len(text)
			index++
		}

		for _, paragraph := range paragraphs {
			paragraphTokens := c.tokenizer.Count(paragraph)

			if currentTokens+paragraphTokens > c.config.MaxChunkTokens && len(current) > 0 {
				overlap := current[len(current)-1]
				overlapTokens := c.tokenizer.Count(overlap)
				emit(page.PageNumber)
				current = []string{overlap, paragraph}
				currentTokens = overlapTokens + paragraphTokens
				continue
			}

			current = append(current, paragraph)
			currentTokens += paragraphTokens
		}

		if len(current) > 0 {
			emit(page.PageNumber)
		}
	}

	return chunks
}
