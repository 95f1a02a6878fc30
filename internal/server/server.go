package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hackhunters/docqa/internal/auth"
	"github.com/hackhunters/docqa/pkg/models"
)

// Error codes returned by the HTTP API.
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeNotFound             = "NOT_FOUND"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUnsupportedFileType  = "UNSUPPORTED_FILE_TYPE"
	CodeEmptyFile            = "EMPTY_FILE"
	CodeMalformedModelOutput = "MALFORMED_MODEL_OUTPUT"
	CodeInternalError        = "INTERNAL_ERROR"
)

// Authenticator manages accounts and sessions.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string, remember bool) (string, time.Time, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*auth.User, error)
}

// DocumentRegistry tracks document metadata and ownership.
type DocumentRegistry interface {
	Create(ctx context.Context, doc models.Document) error
	GetOwned(ctx context.Context, id, ownerID string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error)
	Delete(ctx context.Context, id string) error
}

// Processor runs the background ingestion for one uploaded document.
type Processor interface {
	Process(ctx context.Context, documentID, tempPath string) error
}

// Embedder embeds a single query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever searches and deletes a document's chunk namespace.
type Retriever interface {
	Query(ctx context.Context, vector []float32, documentID string, topK int, minScore float64) ([]models.RetrievedChunk, error)
	DeleteNamespace(ctx context.Context, documentID string) error
}

// Answerer turns retrieved chunks into a grounded answer.
type Answerer interface {
	Ask(ctx context.Context, question string, chunks []models.RetrievedChunk) (*models.Answer, error)
	Stream(ctx context.Context, question string, chunks []models.RetrievedChunk, onToken func(token string)) (string, error)
}

// Archiver keeps raw uploads in object storage. Optional.
type Archiver interface {
	PutDocument(ctx context.Context, documentID, filename string, r io.Reader, size int64) error
	RemoveDocument(ctx context.Context, documentID string) error
}

// Config holds HTTP server configuration.
type Config struct {
	Port        int
	TempDir     string // Where uploads are spooled before processing
	MaxFileSize int64  // Upload size limit in bytes
	TopK        int
	MinScore    float64
}

// Server is the HTTP facade over the document Q&A services.
type Server struct {
	config    Config
	authsvc   Authenticator
	registry  DocumentRegistry
	processor Processor
	embedder  Embedder
	retriever Retriever
	answerer  Answerer
	archiver  Archiver
	mux       *http.ServeMux
}

// New creates the server and wires its routes. The archiver may be nil
// when object storage is disabled.
func New(config Config, authsvc Authenticator, registry DocumentRegistry, processor Processor,
	embedder Embedder, retriever Retriever, answerer Answerer, archiver Archiver) (*Server, error) {
	if authsvc == nil || registry == nil || processor == nil || embedder == nil || retriever == nil || answerer == nil {
		return nil, fmt.Errorf("all services except the archiver are required")
	}
	if config.MaxFileSize <= 0 {
		return nil, fmt.Errorf("max file size must be positive")
	}
	if config.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	s := &Server{
		config:    config,
		authsvc:   authsvc,
		registry:  registry,
		processor: processor,
		embedder:  embedder,
		retriever: retriever,
		answerer:  answerer,
		archiver:  archiver,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.Handle("POST /api/auth/logout", s.requireAuth(s.handleLogout))

	s.mux.Handle("POST /api/documents/upload", s.requireAuth(s.handleUpload))
	s.mux.Handle("GET /api/documents", s.requireAuth(s.handleList))
	s.mux.Handle("GET /api/documents/{id}", s.requireAuth(s.handleGet))
	s.mux.Handle("DELETE /api/documents/{id}", s.requireAuth(s.handleDelete))
	s.mux.Handle("POST /api/documents/{id}/ask", s.requireAuth(s.handleAsk))
	s.mux.Handle("POST /api/documents/{id}/ask/stream", s.requireAuth(s.handleAskStream))
	s.mux.Handle("GET /api/documents/{id}/suggestions", s.requireAuth(s.handleSuggestions))
}

// Handler returns the root handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type contextKey string

const userKey contextKey = "user"

// requireAuth resolves the Bearer token and stores the user in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token")
			return
		}

		user, err := s.authsvc.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
				return
			}
			writeError(w, http.StatusInternalServerError, CodeInternalError, "authentication failed")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func userFrom(r *http.Request) *auth.User {
	user, _ := r.Context().Value(userKey).(*auth.User)
	return user
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
