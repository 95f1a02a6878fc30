package cmd

import (
	"fmt"
	"os"

	"github.com/hackhunters/docqa/internal/answer"
	"github.com/hackhunters/docqa/internal/chunker"
	"github.com/hackhunters/docqa/internal/config"
	"github.com/hackhunters/docqa/internal/embeddings"
	"github.com/hackhunters/docqa/internal/extract"
	"github.com/hackhunters/docqa/internal/ingest"
	"github.com/hackhunters/docqa/internal/llm"
	"github.com/hackhunters/docqa/internal/registry"
	"github.com/hackhunters/docqa/internal/vectorstore"
)

// services bundles the clients shared by the serve, mcp, ingest, and ask
// commands.
type services struct {
	embedder  *embeddings.Client
	store     *vectorstore.Client
	registry  *registry.Registry
	answerer  *answer.Service
	pipeline  *ingest.Pipeline
	extractor *extract.Extractor
	chunker   *chunker.Chunker
}

func buildServices(cfg config.Config) (*services, error) {
	embedder, err := embeddings.New(embeddings.Config{
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.Embeddings.APIKey,
		Model:     cfg.Embeddings.Model,
		BatchSize: cfg.Embeddings.BatchSize,
		Timeout:   cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Addresses:  cfg.Elasticsearch.Addresses,
		Index:      cfg.Elasticsearch.Index,
		Username:   cfg.Elasticsearch.Username,
		Password:   cfg.Elasticsearch.Password,
		Dimensions: cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	reg, err := registry.New(registry.Config{DBPath: cfg.Auth.DBPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open document registry: %w", err)
	}

	llmClient, err := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	answerer, err := answer.New(llmClient, answer.Config{SummaryModel: cfg.LLM.SummaryModel})
	if err != nil {
		return nil, fmt.Errorf("failed to create answer service: %w", err)
	}

	tokenizer, err := chunker.NewTiktoken(cfg.Chunking.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	chk, err := chunker.New(chunker.Config{
		MaxChunkTokens: cfg.Chunking.MaxChunkTokens,
		OverlapTokens:  cfg.Chunking.OverlapTokens,
	}, tokenizer)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	extractor := extract.New()
	pipeline, err := ingest.New(extractor, chk, embedder, store, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	return &services{
		embedder:  embedder,
		store:     store,
		registry:  reg,
		answerer:  answerer,
		pipeline:  pipeline,
		extractor: extractor,
		chunker:   chk,
	}, nil
}

func (s *services) Close() {
	s.registry.Close()
}

func tempDir(cfg config.Config) string {
	if cfg.Upload.TempDir != "" {
		return cfg.Upload.TempDir
	}
	return os.TempDir()
}
