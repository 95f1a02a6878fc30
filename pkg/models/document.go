package models

import (
	"fmt"
	"time"
)

// Document status values tracked while a background processing job runs.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Document represents an uploaded document and its processing state.
type Document struct {
	ID         string    `json:"document_id"`
	OwnerID    string    `json:"owner_id"`
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	TotalChars int       `json:"total_characters"`
	Status     string    `json:"status"`
	ErrorCode  string    `json:"error_code,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Page is one unit of extracted text in document order.
// Pages are immutable once produced by extraction.
type Page struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	CharCount  int    `json:"char_count"`
}

// Chunk is a token-bounded segment of a single page's text, the unit
// of embedding and retrieval. CharStart/CharEnd are offsets within the
// per-page reconstruction of emitted chunk text, reset for each page.
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	PageNumber int    `json:"page_number"`
	CharStart  int    `json:"char_start"`
	CharEnd    int    `json:"char_end"`
	TokenCount int    `json:"token_count"`
}

// RetrievedChunk is a chunk returned from a vector query with its
// cosine similarity score.
type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// Answer confidence labels emitted by the answer model.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// NotFoundMessage is the fixed message returned when the answer is not
// present in the document.
const NotFoundMessage = "Answer not found in the uploaded document."

// Answer is the structured result of a non-streaming ask. Exactly one
// of the two shapes is populated: Found=true carries AnswerText, Pages,
// Quote, Confidence and optionally AdditionalContext and Summary;
// Found=false carries Message and optionally SuggestedQuestions.
type Answer struct {
	Found              bool     `json:"found_in_document"`
	AnswerText         string   `json:"answer,omitempty"`
	Pages              []int    `json:"pages,omitempty"`
	Quote              string   `json:"quote,omitempty"`
	AdditionalContext  string   `json:"additional_context,omitempty"`
	Confidence         string   `json:"confidence,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	Message            string   `json:"message,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
}

// NotFoundAnswer returns the fixed not-found shape.
func NotFoundAnswer() *Answer {
	return &Answer{
		Found:   false,
		Message: NotFoundMessage,
	}
}

// ChunkID builds the vector id for a chunk: monotonically increasing
// index across the whole document, never reset per page.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}
