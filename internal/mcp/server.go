package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hackhunters/docqa/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	OwnerID  string // Documents are scoped to this owner
	TopK     int
	MinScore float64
}

// DocumentLister lists an owner's documents.
type DocumentLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error)
}

// Embedder embeds a single question.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever searches a document's chunk namespace.
type Retriever interface {
	Query(ctx context.Context, vector []float32, documentID string, topK int, minScore float64) ([]models.RetrievedChunk, error)
}

// Answerer turns retrieved chunks into a grounded answer.
type Answerer interface {
	Ask(ctx context.Context, question string, chunks []models.RetrievedChunk) (*models.Answer, error)
}

// Server exposes document Q&A over MCP stdio transport.
type Server struct {
	mcpServer *server.MCPServer
	config    Config
	lister    DocumentLister
	embedder  Embedder
	retriever Retriever
	answerer  Answerer
}

// NewServer creates a new MCP server with document tools.
func NewServer(config Config, lister DocumentLister, embedder Embedder, retriever Retriever, answerer Answerer) (*Server, error) {
	if lister == nil || embedder == nil || retriever == nil || answerer == nil {
		return nil, fmt.Errorf("all services are required")
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		config:    config,
		lister:    lister,
		embedder:  embedder,
		retriever: retriever,
		answerer:  answerer,
	}

	askTool := mcp.NewTool("ask_document",
		mcp.WithDescription("Ask a question about an uploaded document. Returns a grounded answer with page citations, or a not-found response."),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("ID of the document to ask about"),
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer from the document"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum relevance score for retrieved chunks (default from server config)"),
		),
	)
	mcpServer.AddTool(askTool, s.askHandler)

	listTool := mcp.NewTool("list_documents",
		mcp.WithDescription("List uploaded documents with their processing status."),
	)
	mcpServer.AddTool(listTool, s.listHandler)

	return s, nil
}

// askHandler handles the ask_document tool call.
func (s *Server) askHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	documentID, err := req.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError("document_id parameter is required"), nil
	}
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}
	minScore := req.GetFloat("min_score", s.config.MinScore)

	answer, err := s.handleAsk(ctx, documentID, question, minScore)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	result, err := json.Marshal(answer)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal answer: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// listHandler handles the list_documents tool call.
func (s *Server) listHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.lister.ListByOwner(ctx, s.config.OwnerID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	result, err := json.Marshal(docs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal documents: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// handleAsk runs the retrieval and answering pipeline for one question.
func (s *Server) handleAsk(ctx context.Context, documentID, question string, minScore float64) (*models.Answer, error) {
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	chunks, err := s.retriever.Query(ctx, vector, documentID, s.config.TopK, minScore)
	if err != nil {
		return nil, fmt.Errorf("failed to search document: %w", err)
	}
	if len(chunks) == 0 {
		return models.NotFoundAnswer(), nil
	}

	return s.answerer.Ask(ctx, question, chunks)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
