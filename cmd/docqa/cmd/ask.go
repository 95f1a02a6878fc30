package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hackhunters/docqa/pkg/models"
)

var askMinScore float64

var askCmd = &cobra.Command{
	Use:   "ask <document-id> <question>",
	Short: "Ask a question about an ingested document",
	Long: `Ask a question and get an answer grounded strictly in the document.

Prints the answer as JSON: either a grounded answer with page citations,
quote, confidence, and summary, or a not-found response.

Example:
  docqa ask 3f2b9c "What is the submission deadline?"`,
	Args: cobra.ExactArgs(2),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Float64Var(&askMinScore, "min-score", -1, "minimum relevance score (default from config)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	documentID, question := args[0], args[1]

	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	ctx := context.Background()

	doc, err := svcs.registry.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Status != models.StatusReady {
		return fmt.Errorf("document is %s, not ready for questions", doc.Status)
	}

	vector, err := svcs.embedder.Embed(ctx, question)
	if err != nil {
		return fmt.Errorf("failed to embed question: %w", err)
	}

	minScore := cfg.Retrieval.MinScore
	if askMinScore >= 0 {
		minScore = askMinScore
	}

	chunks, err := svcs.store.Query(ctx, vector, documentID, cfg.Retrieval.TopK, minScore)
	if err != nil {
		return fmt.Errorf("failed to search document: %w", err)
	}

	var answer *models.Answer
	if len(chunks) == 0 {
		answer = models.NotFoundAnswer()
	} else {
		answer, err = svcs.answerer.Ask(ctx, question, chunks)
		if err != nil {
			return fmt.Errorf("failed to answer question: %w", err)
		}
	}

	out, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
