package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"unicode"

	"github.com/hackhunters/docqa/internal/extract"
	"github.com/hackhunters/docqa/pkg/models"
)

// minMeaningfulChars is the smallest non-whitespace character count worth
// indexing. Anything below it fails with INSUFFICIENT_CONTENT.
const minMeaningfulChars = 50

// Error codes recorded on failed documents.
const (
	CodeEmptyDocument       = "EMPTY_DOCUMENT"
	CodePasswordProtected   = "PASSWORD_PROTECTED"
	CodeCorruptedFile       = "CORRUPTED_FILE"
	CodeUnsupportedFileType = "UNSUPPORTED_FILE_TYPE"
	CodeInsufficientContent = "INSUFFICIENT_CONTENT"
	CodeEmbeddingFailed     = "EMBEDDING_FAILED"
	CodeVectorStoreError    = "VECTOR_STORE_ERROR"
)

// Extractor turns a file on disk into pages of text.
type Extractor interface {
	Extract(filePath string) ([]models.Page, error)
}

// Chunker splits pages into retrieval-sized chunks.
type Chunker interface {
	Chunk(documentID string, pages []models.Page) []models.Chunk
}

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists chunk vectors.
type VectorStore interface {
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
}

// StatusRecorder receives the outcome of a processing run.
type StatusRecorder interface {
	MarkReady(ctx context.Context, id string, pageCount, chunkCount, totalChars int) error
	MarkFailed(ctx context.Context, id, errorCode string) error
}

// Pipeline runs one uploaded document through extract, chunk, embed, and
// index. Concurrent uploads of the same logical file each get their own
// document ID and run independently.
type Pipeline struct {
	extractor Extractor
	chunker   Chunker
	embedder  Embedder
	store     VectorStore
	registry  StatusRecorder
}

// New creates a new ingestion pipeline.
func New(extractor Extractor, chunker Chunker, embedder Embedder, store VectorStore, registry StatusRecorder) (*Pipeline, error) {
	if extractor == nil || chunker == nil || embedder == nil || store == nil || registry == nil {
		return nil, fmt.Errorf("all pipeline stages are required")
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		registry:  registry,
	}, nil
}

// Process runs the full pipeline for one document and records the outcome
// in the registry. The temp file is removed when processing ends,
// regardless of outcome.
func (p *Pipeline) Process(ctx context.Context, documentID, tempPath string) error {
	defer func() {
		if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove temp file", "path", tempPath, "error", err)
		}
	}()

	pages, err := p.extractor.Extract(tempPath)
	if err != nil {
		return p.fail(ctx, documentID, extractionCode(err), err)
	}

	if meaningfulChars(pages) < minMeaningfulChars {
		return p.fail(ctx, documentID, CodeInsufficientContent,
			fmt.Errorf("document has fewer than %d meaningful characters", minMeaningfulChars))
	}

	chunks := p.chunker.Chunk(documentID, pages)
	if len(chunks) == 0 {
		return p.fail(ctx, documentID, CodeInsufficientContent,
			fmt.Errorf("document produced no chunks"))
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return p.fail(ctx, documentID, CodeEmbeddingFailed, err)
	}

	if err := p.store.Upsert(ctx, chunks, vectors); err != nil {
		return p.fail(ctx, documentID, CodeVectorStoreError, err)
	}

	totalChars := 0
	for _, page := range pages {
		totalChars += page.CharCount
	}

	if err := p.registry.MarkReady(ctx, documentID, len(pages), len(chunks), totalChars); err != nil {
		return fmt.Errorf("failed to record success: %w", err)
	}

	slog.Info("document processed",
		"document_id", documentID,
		"pages", len(pages),
		"chunks", len(chunks),
		"chars", totalChars)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, documentID, code string, cause error) error {
	slog.Warn("document processing failed",
		"document_id", documentID,
		"error_code", code,
		"error", cause)
	if err := p.registry.MarkFailed(ctx, documentID, code); err != nil {
		slog.Error("failed to record failure", "document_id", documentID, "error", err)
	}
	return fmt.Errorf("%s: %w", code, cause)
}

// extractionCode maps extraction errors to their error codes.
func extractionCode(err error) string {
	switch {
	case errors.Is(err, extract.ErrEmptyDocument):
		return CodeEmptyDocument
	case errors.Is(err, extract.ErrPasswordProtected):
		return CodePasswordProtected
	case errors.Is(err, extract.ErrUnsupportedType):
		return CodeUnsupportedFileType
	default:
		return CodeCorruptedFile
	}
}

// meaningfulChars counts non-whitespace characters across all pages.
func meaningfulChars(pages []models.Page) int {
	count := 0
	for _, page := range pages {
		for _, r := range page.Text {
			if !unicode.IsSpace(r) {
				count++
			}
		}
	}
	return count
}
