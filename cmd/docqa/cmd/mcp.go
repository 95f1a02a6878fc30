package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackhunters/docqa/internal/mcp"
)

var mcpOwner string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the MCP server for document question answering.

The server communicates via stdio and provides two tools:
  - ask_document: Ask a question about an ingested document
  - list_documents: List documents with their processing status

Example:
  docqa mcp --owner local`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpOwner, "owner", "local", "owner whose documents the tools operate on")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:     cfg.MCP.Name,
		Version:  cfg.MCP.Version,
		OwnerID:  mcpOwner,
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
	}, svcs.registry, svcs.embedder, svcs.store, svcs.answerer)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return mcpServer.ServeStdio()
}
