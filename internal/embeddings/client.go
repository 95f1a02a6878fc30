package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Config holds embeddings client configuration.
type Config struct {
	BaseURL   string        // OpenAI-compatible API base URL
	APIKey    string        // Bearer token; empty for unauthenticated local servers
	Model     string        // Model name (e.g. "text-embedding-3-small")
	BatchSize int           // Texts per request; defaults to 100
	Timeout   time.Duration // Per-request timeout; defaults to 30s
}

// Client wraps an OpenAI-compatible embeddings API. Batches are issued
// strictly sequentially: a batch is not sent until the previous batch's
// response has arrived.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
}

// maxAttempts bounds retries for a single batch request.
const maxAttempts = 3

// retryBaseDelay is the first backoff step; doubled per attempt.
// Variable so tests can shrink it.
var retryBaseDelay = time.Second

// New creates a new embeddings client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		model:      config.Model,
		batchSize:  config.BatchSize,
	}, nil
}

// embeddingRequest is the request payload for the embeddings API.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the response from the embeddings API.
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding vector for a single text. Used for
// query embedding at ask time.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	vectors, err := c.embedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for texts, preserving input order in
// the output. Requests are split into batches of the configured size
// and sent one after another.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("cannot embed an empty list of texts")
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch starting at %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
		slog.Debug("embedded batch", "start", start, "size", end-start)
	}
	return vectors, nil
}

// embedBatch sends one batch, retrying transient failures with
// exponential backoff up to maxAttempts.
func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := retryBaseDelay << (attempt - 1)
			slog.Debug("retrying embedding request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vectors, retryable, err := c.doEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) doEmbed(ctx context.Context, texts []string) ([][]float32, bool, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network failures are transient by assumption.
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if embResp.Error != nil {
		return nil, false, fmt.Errorf("API error: %s", embResp.Error.Message)
	}
	if len(embResp.Data) != len(texts) {
		return nil, false, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Data))
	}

	// The API is allowed to return entries out of order; the index
	// field is authoritative.
	sort.Slice(embResp.Data, func(i, j int) bool {
		return embResp.Data[i].Index < embResp.Data[j].Index
	})

	vectors := make([][]float32, len(embResp.Data))
	for i, d := range embResp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, false, nil
}
