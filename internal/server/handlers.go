package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackhunters/docqa/internal/answer"
	"github.com/hackhunters/docqa/internal/auth"
	"github.com/hackhunters/docqa/internal/extract"
	"github.com/hackhunters/docqa/internal/registry"
	"github.com/hackhunters/docqa/pkg/models"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, ErrorCode: code})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	user, err := s.authsvc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			writeError(w, http.StatusConflict, CodeInvalidRequest, "email is already registered")
			return
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	token, expiresAt, err := s.authsvc.Login(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid email or password")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternalError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if err := s.authsvc.Logout(r.Context(), token); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "logout failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type uploadResponse struct {
	DocumentID string `json:"document_id"`
	FileName   string `json:"filename"`
	Size       int64  `json:"size"`
	Status     string `json:"status"`
}

// multipartOverhead is the headroom allowed for multipart framing on top
// of the configured file size limit.
const multipartOverhead = 1 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxFileSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, CodeFileTooLarge, "upload exceeds the size limit")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	// Validation happens before any processing is scheduled.
	if _, err := extract.ValidateExtension(header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, CodeUnsupportedFileType, err.Error())
		return
	}
	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, CodeEmptyFile, "uploaded file is empty")
		return
	}
	if header.Size > s.config.MaxFileSize {
		writeError(w, http.StatusBadRequest, CodeFileTooLarge,
			fmt.Sprintf("file exceeds the %d byte limit", s.config.MaxFileSize))
		return
	}

	documentID := uuid.NewString()
	tempPath := filepath.Join(s.config.TempDir, documentID+filepath.Ext(header.Filename))
	if err := spool(tempPath, file); err != nil {
		slog.Error("failed to spool upload", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to store upload")
		return
	}

	doc := models.Document{
		ID:       documentID,
		OwnerID:  user.ID,
		FileName: header.Filename,
		Size:     header.Size,
		Status:   models.StatusProcessing,
	}
	if err := s.registry.Create(r.Context(), doc); err != nil {
		os.Remove(tempPath)
		slog.Error("failed to record document", "error", err)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to record document")
		return
	}

	if s.archiver != nil {
		if err := s.archive(r, documentID, header.Filename, tempPath); err != nil {
			// The archive copy is a convenience, not a processing input.
			slog.Warn("failed to archive upload", "document_id", documentID, "error", err)
		}
	}

	go func() {
		if err := s.processor.Process(context.Background(), documentID, tempPath); err != nil {
			slog.Warn("background processing failed", "document_id", documentID, "error", err)
		}
	}()

	writeJSON(w, http.StatusOK, uploadResponse{
		DocumentID: documentID,
		FileName:   header.Filename,
		Size:       header.Size,
		Status:     models.StatusProcessing,
	})
}

func spool(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return nil
}

func (s *Server) archive(r *http.Request, documentID, filename, tempPath string) error {
	f, err := os.Open(tempPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return s.archiver.PutDocument(r.Context(), documentID, filename, f, info.Size())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.registry.ListByOwner(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.ownedDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.ownedDocument(w, r)
	if !ok {
		return
	}

	if err := s.retriever.DeleteNamespace(r.Context(), doc.ID); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to delete document vectors")
		return
	}
	if s.archiver != nil {
		if err := s.archiver.RemoveDocument(r.Context(), doc.ID); err != nil {
			slog.Warn("failed to remove archived upload", "document_id", doc.ID, "error", err)
		}
	}
	if err := s.registry.Delete(r.Context(), doc.ID); err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to delete document")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type askRequest struct {
	Question string   `json:"question"`
	MinScore *float64 `json:"min_score,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	_, req, chunks, ok := s.retrieve(w, r)
	if !ok {
		return
	}

	// Zero retrieved chunks short-circuits without touching the model.
	if len(chunks) == 0 {
		writeJSON(w, http.StatusOK, models.NotFoundAnswer())
		return
	}

	ans, err := s.answerer.Ask(r.Context(), req.Question, chunks)
	if err != nil {
		if errors.Is(err, answer.ErrMalformedOutput) {
			writeError(w, http.StatusBadGateway, CodeMalformedModelOutput, "model returned malformed output")
			return
		}
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to answer question")
		return
	}

	writeJSON(w, http.StatusOK, ans)
}

func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	_, req, chunks, ok := s.retrieve(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	_, err := s.answerer.Stream(r.Context(), req.Question, chunks, func(token string) {
		fmt.Fprintf(w, "data: %s\n\n", sseEscape(token))
		flusher.Flush()
	})
	if err != nil {
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", sseEscape(err.Error()))
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// retrieve handles the shared front half of ask and ask/stream: parse the
// question, check ownership and readiness, embed, and query.
func (s *Server) retrieve(w http.ResponseWriter, r *http.Request) (*models.Document, askRequest, []models.RetrievedChunk, bool) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return nil, req, nil, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "question cannot be empty")
		return nil, req, nil, false
	}

	doc, ok := s.ownedDocument(w, r)
	if !ok {
		return nil, req, nil, false
	}
	if doc.Status != models.StatusReady {
		writeError(w, http.StatusConflict, CodeInvalidRequest,
			fmt.Sprintf("document is %s, not ready for questions", doc.Status))
		return nil, req, nil, false
	}

	vector, err := s.embedder.Embed(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to embed question")
		return nil, req, nil, false
	}

	minScore := s.config.MinScore
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	chunks, err := s.retriever.Query(r.Context(), vector, doc.ID, s.config.TopK, minScore)
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to search document")
		return nil, req, nil, false
	}

	return doc, req, chunks, true
}

// suggestedQuestions is the static suggestion list served before the user
// asks anything.
var suggestedQuestions = []string{
	"What is this document about?",
	"What are the key deadlines mentioned?",
	"What are the eligibility requirements?",
	"How are submissions evaluated?",
	"What are the prizes or awards?",
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.ownedDocument(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestedQuestions})
}

// sseEscape keeps multi-line tokens valid as a single SSE data event.
func sseEscape(s string) string {
	return strings.ReplaceAll(s, "\n", "\ndata: ")
}

// ownedDocument loads the path's document scoped to the caller. Missing
// and foreign documents both read as 404.
func (s *Server) ownedDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id := r.PathValue("id")
	doc, err := s.registry.GetOwned(r.Context(), id, userFrom(r).ID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "document not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, CodeInternalError, "failed to load document")
		return nil, false
	}
	return doc, true
}
