package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/hackhunters/docqa/pkg/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractTXT reads a plain text file as a single Page. Decoding
// cascade: UTF-8 (with or without BOM), then Windows-1252 as the
// legacy fallback.
func extractTXT(filePath string) ([]models.Page, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrEmptyDocument)
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)

	var text string
	if utf8.Valid(raw) {
		text = string(raw)
	} else {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: undecodable text encoding", ErrCorruptedFile)
		}
		text = string(decoded)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: file contains only whitespace", ErrEmptyDocument)
	}

	return []models.Page{{
		PageNumber: 1,
		Text:       text,
		CharCount:  len(text),
	}}, nil
}
