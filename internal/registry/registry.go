package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hackhunters/docqa/pkg/models"
)

// ErrNotFound indicates the document does not exist.
var ErrNotFound = errors.New("document not found")

// Config holds registry configuration.
type Config struct {
	DBPath string
}

// Registry is the source of truth for document metadata and processing
// status. Every uploaded document gets a row here before its background
// processing starts.
type Registry struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	file_name   TEXT NOT NULL,
	size        INTEGER NOT NULL,
	page_count  INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	total_chars INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	error_code  TEXT NOT NULL DEFAULT '',
	uploaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id);
`

// New opens the registry database and ensures the schema exists.
func New(config Config) (*Registry, error) {
	if config.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite", config.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create registry schema: %w", err)
	}

	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Create records a new document in processing state.
func (r *Registry) Create(ctx context.Context, doc models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.OwnerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if doc.Status == "" {
		doc.Status = models.StatusProcessing
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, owner_id, file_name, size, page_count, chunk_count, total_chars, status, error_code, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.OwnerID, doc.FileName, doc.Size, doc.PageCount, doc.ChunkCount,
		doc.TotalChars, doc.Status, doc.ErrorCode, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

const documentColumns = "id, owner_id, file_name, size, page_count, chunk_count, total_chars, status, error_code, uploaded_at"

func scanDocument(row interface{ Scan(...any) error }) (*models.Document, error) {
	var doc models.Document
	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.FileName, &doc.Size, &doc.PageCount,
		&doc.ChunkCount, &doc.TotalChars, &doc.Status, &doc.ErrorCode, &doc.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Get returns a document by ID.
func (r *Registry) Get(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// GetOwned returns a document only if it belongs to the given owner.
// A document owned by someone else reads as not found.
func (r *Registry) GetOwned(ctx context.Context, id, ownerID string) (*models.Document, error) {
	doc, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return doc, nil
}

// ListByOwner returns the owner's documents, newest first.
func (r *Registry) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE owner_id = ? ORDER BY uploaded_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// MarkReady records successful processing with the final counts.
func (r *Registry) MarkReady(ctx context.Context, id string, pageCount, chunkCount, totalChars int) error {
	return r.update(ctx, id,
		"UPDATE documents SET status = ?, page_count = ?, chunk_count = ?, total_chars = ?, error_code = '' WHERE id = ?",
		models.StatusReady, pageCount, chunkCount, totalChars, id)
}

// MarkFailed records a failed processing run with its error code.
func (r *Registry) MarkFailed(ctx context.Context, id, errorCode string) error {
	return r.update(ctx, id,
		"UPDATE documents SET status = ?, error_code = ? WHERE id = ?",
		models.StatusFailed, errorCode, id)
}

func (r *Registry) update(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a document row. Deleting an unknown ID is a no-op.
func (r *Registry) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
