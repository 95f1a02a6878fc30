package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hackhunters/docqa/pkg/models"
)

// Extraction error taxonomy. Handlers map these to user-facing error
// codes, so they must stay distinguishable with errors.Is.
var (
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrCorruptedFile     = errors.New("file appears to be corrupted or unreadable")
	ErrPasswordProtected = errors.New("password-protected documents are not supported")
	ErrEmptyDocument     = errors.New("document contains no extractable text")
)

// SupportedExtensions lists the accepted upload formats.
var SupportedExtensions = []string{".pdf", ".docx", ".txt"}

// ValidateExtension checks the file name against the supported set and
// returns the normalised lowercase extension.
func ValidateExtension(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, s := range SupportedExtensions {
		if ext == s {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %q (supported: %s)",
		ErrUnsupportedType, ext, strings.Join(SupportedExtensions, ", "))
}

// Extractor extracts ordered Pages of text from supported document
// formats. PDFs produce one Page per physical page; DOCX and TXT
// produce a single Page.
type Extractor struct{}

// New creates a new Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract dispatches on the file extension and returns the extracted
// pages in document order. The returned pages contain only non-empty
// text; a document with no readable text yields ErrEmptyDocument.
func (e *Extractor) Extract(filePath string) ([]models.Page, error) {
	ext, err := ValidateExtension(filePath)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	switch ext {
	case ".pdf":
		pages, err = extractPDF(filePath)
	case ".docx":
		pages, err = extractDOCX(filePath)
	case ".txt":
		pages, err = extractTXT(filePath)
	}
	if err != nil {
		return nil, err
	}

	if totalChars(pages) == 0 {
		return nil, ErrEmptyDocument
	}
	return pages, nil
}

func totalChars(pages []models.Page) int {
	total := 0
	for _, p := range pages {
		total += len(strings.TrimSpace(p.Text))
	}
	return total
}
