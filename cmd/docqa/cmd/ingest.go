package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackhunters/docqa/internal/extract"
	"github.com/hackhunters/docqa/pkg/models"
)

var ingestOwner string

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Process a local file into the index",
	Long: `Extract, chunk, embed, and index a local PDF, DOCX, or TXT file.

Unlike the HTTP upload endpoint this runs synchronously and reports the
final document status.

Example:
  docqa ingest ./hackathon-rules.pdf
  docqa ingest --owner alice ./rules.docx`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "local", "owner to record the document under")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	filePath := args[0]

	if _, err := extract.ValidateExtension(filePath); err != nil {
		return err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > cfg.Upload.MaxFileSizeBytes() {
		return fmt.Errorf("file exceeds the %dMB limit", cfg.Upload.MaxFileSizeMB)
	}

	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx := context.Background()
	if err := svcs.store.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("failed to prepare chunk index: %w", err)
	}

	documentID := uuid.NewString()

	// The pipeline removes its input when done, so work on a copy.
	tempPath := filepath.Join(tempDir(cfg), documentID+filepath.Ext(filePath))
	if err := copyFile(filePath, tempPath); err != nil {
		return err
	}

	doc := models.Document{
		ID:       documentID,
		OwnerID:  ingestOwner,
		FileName: filepath.Base(filePath),
		Size:     info.Size(),
		Status:   models.StatusProcessing,
	}
	if err := svcs.registry.Create(ctx, doc); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to record document: %w", err)
	}

	if err := svcs.pipeline.Process(ctx, documentID, tempPath); err != nil {
		return fmt.Errorf("processing failed: %w", err)
	}

	final, err := svcs.registry.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load result: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s\n", final.FileName)
	fmt.Fprintf(cmd.OutOrStdout(), "  document_id: %s\n", final.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "  pages:       %d\n", final.PageCount)
	fmt.Fprintf(cmd.OutOrStdout(), "  chunks:      %d\n", final.ChunkCount)
	fmt.Fprintf(cmd.OutOrStdout(), "  characters:  %d\n", final.TotalChars)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create temp copy: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}
