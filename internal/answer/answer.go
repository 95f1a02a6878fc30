package answer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hackhunters/docqa/pkg/models"
)

// ErrMalformedOutput indicates the model response did not match the
// expected JSON contract.
var ErrMalformedOutput = errors.New("model output did not match the expected JSON shape")

// Completer is the subset of the LLM client used by the answer service.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWith(ctx context.Context, model, prompt string, maxTokens int) (string, error)
	Stream(ctx context.Context, prompt string, onToken func(token string)) (string, error)
}

// Config holds answer service configuration.
type Config struct {
	SummaryModel string // Cheaper model used for the follow-up summary
}

// Service turns retrieved chunks and a question into a grounded answer.
type Service struct {
	llm          Completer
	summaryModel string
}

// New creates a new answer service.
func New(llm Completer, config Config) (*Service, error) {
	if llm == nil {
		return nil, fmt.Errorf("LLM client is required")
	}
	if config.SummaryModel == "" {
		return nil, fmt.Errorf("summary model is required")
	}
	return &Service{
		llm:          llm,
		summaryModel: config.SummaryModel,
	}, nil
}

// BuildContext renders retrieved chunks into the prompt context block.
// Chunks are kept in retrieval rank order, not re-sorted by page.
func BuildContext(chunks []models.RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("[Source %d | Page %d | Relevance: %.4f]\n%s",
			i+1, chunk.PageNumber, chunk.Score, chunk.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

const answerPromptTemplate = `You are a highly accurate document assistant.

STRICT RULES:
1. Answer ONLY based on the provided context below.
2. Do NOT make up, infer, or hallucinate any information beyond what is explicitly stated in the context.
3. Respond with a single JSON object and NOTHING else. No prose before or after it.

If the context contains the answer, use exactly this shape:
{"found_in_document": true, "answer": "<the answer>", "pages": [<supporting page numbers>], "quote": "<verbatim quote from the context>", "additional_context": "<optional clarification, may be empty>", "confidence": "<high|medium|low>"}

If the context does NOT contain the answer, use exactly this shape:
{"found_in_document": false, "message": %q, "suggested_questions": ["<a question the context could answer>"]}

CONTEXT FROM DOCUMENT:
%s

USER QUESTION:
%s`

const summaryPromptTemplate = `Summarize the following answer in 3 to 5 short lines.
Keep only the essential facts. Do not add information.

ANSWER:
%s`

const streamPromptTemplate = `You are a highly accurate document assistant.

STRICT RULES:
1. Answer ONLY based on the provided context below.
2. If the answer is not present in the context, respond with exactly: %q
3. Do NOT make up, infer, or hallucinate any information beyond what is explicitly stated in the context.
4. Be concise but thorough.

CONTEXT FROM DOCUMENT:
%s

USER QUESTION:
%s`

// rawAnswer is the model's JSON output before validation. The found flag is
// a pointer so a missing field is distinguishable from false.
type rawAnswer struct {
	Found              *bool    `json:"found_in_document"`
	Answer             string   `json:"answer"`
	Pages              []int    `json:"pages"`
	Quote              string   `json:"quote"`
	AdditionalContext  string   `json:"additional_context"`
	Confidence         string   `json:"confidence"`
	Message            string   `json:"message"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

// Ask answers a question grounded in the given chunks. A grounded answer
// triggers a second call on the summary model. Model output that violates
// the JSON contract returns ErrMalformedOutput.
func (s *Service) Ask(ctx context.Context, question string, chunks []models.RetrievedChunk) (*models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if len(chunks) == 0 {
		return models.NotFoundAnswer(), nil
	}

	prompt := fmt.Sprintf(answerPromptTemplate, models.NotFoundMessage, BuildContext(chunks), question)

	raw, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	parsed, err := parseModelOutput(raw)
	if err != nil {
		slog.Warn("model returned malformed output", "error", err)
		return nil, err
	}

	if !*parsed.Found {
		answer := models.NotFoundAnswer()
		answer.SuggestedQuestions = parsed.SuggestedQuestions
		return answer, nil
	}

	answer := &models.Answer{
		Found:             true,
		AnswerText:        parsed.Answer,
		Pages:             parsed.Pages,
		Quote:             parsed.Quote,
		AdditionalContext: parsed.AdditionalContext,
		Confidence:        normalizeConfidence(parsed.Confidence),
	}

	summary, err := s.llm.CompleteWith(ctx, s.summaryModel,
		fmt.Sprintf(summaryPromptTemplate, parsed.Answer), 256)
	if err != nil {
		// The grounded answer stands on its own, so a failed summary
		// degrades rather than failing the whole request.
		slog.Warn("failed to generate summary", "error", err)
	} else {
		answer.Summary = summary
	}

	return answer, nil
}

// Stream answers a question as a raw token stream. Unlike Ask, the output
// is plain text and is not validated against the JSON contract.
func (s *Service) Stream(ctx context.Context, question string, chunks []models.RetrievedChunk, onToken func(token string)) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question cannot be empty")
	}
	if len(chunks) == 0 {
		if onToken != nil {
			onToken(models.NotFoundMessage)
		}
		return models.NotFoundMessage, nil
	}

	prompt := fmt.Sprintf(streamPromptTemplate, models.NotFoundMessage, BuildContext(chunks), question)
	full, err := s.llm.Stream(ctx, prompt, onToken)
	if err != nil {
		return "", fmt.Errorf("failed to stream answer: %w", err)
	}
	return full, nil
}

// parseModelOutput strips markdown fences and decodes the strict JSON shape.
func parseModelOutput(raw string) (*rawAnswer, error) {
	cleaned := stripFences(raw)

	var parsed rawAnswer
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if parsed.Found == nil {
		return nil, fmt.Errorf("%w: missing found_in_document", ErrMalformedOutput)
	}
	if *parsed.Found && strings.TrimSpace(parsed.Answer) == "" {
		return nil, fmt.Errorf("%w: grounded answer with empty answer text", ErrMalformedOutput)
	}
	return &parsed, nil
}

// stripFences removes a surrounding markdown code fence, with or without
// a language tag, from the model output.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeConfidence(confidence string) string {
	switch strings.ToLower(strings.TrimSpace(confidence)) {
	case models.ConfidenceHigh:
		return models.ConfidenceHigh
	case models.ConfidenceLow:
		return models.ConfidenceLow
	default:
		return models.ConfidenceMedium
	}
}
