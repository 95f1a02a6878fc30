package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	retryBaseDelay = time.Millisecond
	m.Run()
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty base URL",
			config:  Config{BaseURL: "", Model: "test-model"},
			wantErr: true,
		},
		{
			name:    "empty model",
			config:  Config{BaseURL: "http://localhost:9999", Model: ""},
			wantErr: true,
		},
		{
			name:    "valid config",
			config:  Config{BaseURL: "http://localhost:9999", Model: "test-model"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

type embedData struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func newMockServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:   server.URL,
		Model:     "test-model",
		BatchSize: 2,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return server, client
}

func TestEmbed_Single(t *testing.T) {
	want := []float32{0.1, 0.2, 0.3}
	_, client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if len(req.Input) != 1 || req.Input[0] != "hello" {
			t.Errorf("unexpected input: %v", req.Input)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []embedData{{Index: 0, Embedding: want}},
		})
	})

	got, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d dims, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dim %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	_, client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for empty text")
	})

	if _, err := client.Embed(context.Background(), "   "); err == nil {
		t.Error("Embed() expected error for empty text")
	}
}

func TestEmbedBatch_SequentialBatchesPreserveOrder(t *testing.T) {
	var calls atomic.Int32
	_, client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req embeddingRequest
		json.NewDecoder(r.Body).Decode(&req)

		// Answer out of order within the batch: the client must sort
		// by the index field.
		data := make([]embedData, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, embedData{
				Index:     i,
				Embedding: []float32{float32(len(req.Input[i]))},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := client.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}

	// BatchSize is 2, so 5 texts take 3 sequential requests.
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 batch requests, got %d", got)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, text := range texts {
		if vectors[i][0] != float32(len(text)) {
			t.Errorf("vector %d = %v, want marker for %q", i, vectors[i], text)
		}
	}
}

func TestEmbedBatch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	_, client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []embedData{{Index: 0, Embedding: []float32{1}}},
		})
	})

	vectors, err := client.EmbedBatch(context.Background(), []string{"x"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if len(vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vectors))
	}
}

func TestEmbedBatch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	_, client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.EmbedBatch(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("EmbedBatch() expected error after exhausted retries")
	}
	if calls.Load() != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, calls.Load())
	}
}

func TestEmbedBatch_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	_, client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad input"}}`))
	})

	_, err := client.EmbedBatch(context.Background(), []string{"x"})
	if err == nil {
		t.Fatal("EmbedBatch() expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx should not be retried, got %d attempts", calls.Load())
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	_, client := newMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []embedData{}})
	})

	if _, err := client.EmbedBatch(context.Background(), []string{"x"}); err == nil {
		t.Error("EmbedBatch() expected error for count mismatch")
	}
}
