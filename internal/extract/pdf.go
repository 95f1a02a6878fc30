package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/hackhunters/docqa/pkg/models"
)

// extractPDF extracts text page by page. Page numbers follow document
// order starting at 1. Pages whose text extraction fails or yields
// only whitespace are skipped without failing the document.
func extractPDF(filePath string) ([]models.Page, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedFile, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: PDF has zero pages", ErrEmptyDocument)
	}

	var pages []models.Page
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}
		pages = append(pages, models.Page{
			PageNumber: i + 1,
			Text:       trimmed,
			CharCount:  len(trimmed),
		})
	}

	return pages, nil
}
