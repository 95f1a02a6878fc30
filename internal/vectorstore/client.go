package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/hackhunters/docqa/pkg/models"
)

// previewChars caps the text_preview field stored alongside each chunk.
const previewChars = 200

// upsertBatchSize bounds the number of chunks per bulk request.
const upsertBatchSize = 100

// Config holds vector store configuration.
type Config struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	Dimensions int
}

// Client wraps an Elasticsearch index used as a per-document vector store.
// Chunks are namespaced by document_id so one document's retrieval never
// sees another document's chunks.
type Client struct {
	es         *elasticsearch.Client
	index      string
	dimensions int
}

// New creates a new vector store client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index is required")
	}
	if config.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:         es,
		index:      config.Index,
		dimensions: config.Dimensions,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the chunk index mapping. The embedding dimension is
// interpolated from config so the index matches the embedding model in use.
const indexMappingTemplate = `{
	"mappings": {
		"properties": {
			"chunk_id": { "type": "keyword" },
			"document_id": { "type": "keyword" },
			"text": { "type": "text" },
			"text_preview": { "type": "keyword", "index": false },
			"page_number": { "type": "integer" },
			"char_start": { "type": "integer" },
			"char_end": { "type": "integer" },
			"token_count": { "type": "integer" },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`

// EnsureIndex creates the chunk index with proper mapping if it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	mapping := fmt.Sprintf(indexMappingTemplate, c.dimensions)
	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// chunkDocument is the stored shape of a chunk. The full text is kept for
// answer context and a truncated preview rides along for quick inspection.
type chunkDocument struct {
	ChunkID     string    `json:"chunk_id"`
	DocumentID  string    `json:"document_id"`
	Text        string    `json:"text"`
	TextPreview string    `json:"text_preview"`
	PageNumber  int       `json:"page_number"`
	CharStart   int       `json:"char_start"`
	CharEnd     int       `json:"char_end"`
	TokenCount  int       `json:"token_count"`
	Embedding   []float32 `json:"embedding"`
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewChars {
		return text
	}
	return string(runes[:previewChars])
}

// Upsert stores chunks with their embeddings in sequential bulk batches.
// Chunk IDs are used as document IDs, so re-indexing the same chunk
// overwrites the previous version.
func (c *Client) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := c.bulkIndex(ctx, chunks[start:end], vectors[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) bulkIndex(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	var body bytes.Buffer
	for i, chunk := range chunks {
		action := map[string]map[string]string{
			"index": {"_index": c.index, "_id": chunk.ChunkID},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("failed to marshal bulk action: %w", err)
		}

		doc := chunkDocument{
			ChunkID:     chunk.ChunkID,
			DocumentID:  chunk.DocumentID,
			Text:        chunk.Text,
			TextPreview: preview(chunk.Text),
			PageNumber:  chunk.PageNumber,
			CharStart:   chunk.CharStart,
			CharEnd:     chunk.CharEnd,
			TokenCount:  chunk.TokenCount,
			Embedding:   vectors[i],
		}
		docLine, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk %s: %w", chunk.ChunkID, err)
		}

		body.Write(actionLine)
		body.WriteByte('\n')
		body.Write(docLine)
		body.WriteByte('\n')
	}

	res, err := c.es.Bulk(
		bytes.NewReader(body.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index error (status %d): %s", res.StatusCode, res.String())
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkRes.Errors {
		for _, item := range bulkRes.Items {
			for _, op := range item {
				if op.Status >= 300 {
					return fmt.Errorf("bulk index item failed (status %d): %s", op.Status, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk index reported errors")
	}

	return nil
}

// searchResponse represents the ES kNN search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64       `json:"_score"`
			Source chunkDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query runs a kNN search over the given document's chunks and returns hits
// scoring at or above minScore, best first. An unknown documentID simply
// yields no hits.
func (c *Client) Query(ctx context.Context, vector []float32, documentID string, topK int, minScore float64) ([]models.RetrievedChunk, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document ID is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	searchQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
			"filter": map[string]interface{}{
				"term": map[string]interface{}{"document_id": documentID},
			},
		},
		"size": topK,
	}

	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var retrieved []models.RetrievedChunk
	for _, hit := range sr.Hits.Hits {
		if hit.Score < minScore {
			continue
		}
		retrieved = append(retrieved, models.RetrievedChunk{
			Chunk: models.Chunk{
				ChunkID:    hit.Source.ChunkID,
				DocumentID: hit.Source.DocumentID,
				Text:       hit.Source.Text,
				PageNumber: hit.Source.PageNumber,
				CharStart:  hit.Source.CharStart,
				CharEnd:    hit.Source.CharEnd,
				TokenCount: hit.Source.TokenCount,
			},
			Score: hit.Score,
		})
	}

	return retrieved, nil
}

// DeleteNamespace removes every chunk belonging to the given document.
// Deleting a document that was never indexed is a no-op.
func (c *Client) DeleteNamespace(ctx context.Context, documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"document_id": documentID},
		},
	}

	data, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal delete query: %w", err)
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(data),
		c.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete by query failed: %w", err)
	}
	defer res.Body.Close()

	// A missing index means nothing was ever indexed, which is fine.
	if res.StatusCode == 404 {
		return nil
	}

	if res.IsError() {
		return fmt.Errorf("delete by query error: %s", res.String())
	}

	return nil
}
