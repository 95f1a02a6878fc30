package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hackhunters/docqa/pkg/models"
)

// oleMagic is the compound-file header used by encrypted OOXML
// documents. A .docx that is not a zip but starts with this header is
// password protected rather than corrupted.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// extractDOCX reads word/document.xml out of the OOXML zip container
// and collects paragraph text. The whole document becomes a single
// Page with paragraphs separated by blank lines, which is what the
// chunker splits on.
func extractDOCX(filePath string) ([]models.Page, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		if isOLEFile(filePath) {
			return nil, fmt.Errorf("%w: encrypted DOCX container", ErrPasswordProtected)
		}
		return nil, fmt.Errorf("%w: not a valid DOCX container: %v", ErrCorruptedFile, err)
	}
	defer r.Close()

	var docXML []byte
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruptedFile, err)
			}
			docXML, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCorruptedFile, err)
			}
			break
		}
	}
	if docXML == nil {
		return nil, fmt.Errorf("%w: missing word/document.xml", ErrCorruptedFile)
	}

	paragraphs, err := docxParagraphs(docXML)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedFile, err)
	}
	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("%w: DOCX has no readable text", ErrEmptyDocument)
	}

	text := strings.Join(paragraphs, "\n\n")
	return []models.Page{{
		PageNumber: 1,
		Text:       text,
		CharCount:  len(text),
	}}, nil
}

// docxParagraphs walks the WordprocessingML token stream, emitting one
// string per non-empty <w:p> element. Text lives in <w:t> runs; tabs
// and explicit breaks become whitespace so table rows stay readable.
func docxParagraphs(docXML []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))

	var paragraphs []string
	var current strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte(' ')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(current.String()); s != "" {
					paragraphs = append(paragraphs, s)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return paragraphs, nil
}

func isOLEFile(filePath string) bool {
	f, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, len(oleMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return false
	}
	return bytes.Equal(header, oleMagic)
}
