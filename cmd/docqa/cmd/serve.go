package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hackhunters/docqa/internal/auth"
	"github.com/hackhunters/docqa/internal/server"
	"github.com/hackhunters/docqa/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server for document upload and question answering.

Endpoints include document upload, grounded ask (JSON and SSE streaming),
suggestions, and account management. See the configuration file for
Elasticsearch, embedding, and LLM settings.

Example:
  docqa serve
  DOCQA_SERVER_PORT=9000 docqa serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret must be set (DOCQA_AUTH_TOKEN_SECRET)")
	}

	svcs, err := buildServices(cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	authsvc, err := auth.New(auth.Config{
		DBPath:        cfg.Auth.DBPath,
		TokenSecret:   cfg.Auth.TokenSecret,
		SessionTTL:    cfg.Auth.SessionTTL,
		RememberedTTL: cfg.Auth.RememberedTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}
	defer authsvc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svcs.store.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("failed to prepare chunk index: %w", err)
	}

	var archiver server.Archiver
	if cfg.Storage.Enabled {
		s3, err := storage.New(storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to prepare storage bucket: %w", err)
		}
		archiver = s3
	}

	srv, err := server.New(server.Config{
		Port:        cfg.Server.Port,
		TempDir:     tempDir(cfg),
		MaxFileSize: cfg.Upload.MaxFileSizeBytes(),
		TopK:        cfg.Retrieval.TopK,
		MinScore:    cfg.Retrieval.MinScore,
	}, authsvc, svcs.registry, svcs.pipeline, svcs.embedder, svcs.store, svcs.answerer, archiver)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.ListenAndServe(ctx)
}
