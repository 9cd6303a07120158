// Package pdfextract pulls plain text out of uploaded PDF files.
package pdfextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/andino-labs/policychat/internal/domain"
)

// Extractor extracts plain text from PDF bytes
type Extractor struct{}

// NewExtractor creates a new Extractor instance
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText returns the text content of a PDF. Malformed or image-only
// files surface as domain.ErrDocumentNotText.
func (e *Extractor) ExtractText(data []byte) (text string, err error) {
	// The parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: parser panic: %v", domain.ErrDocumentNotText, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDocumentNotText, err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDocumentNotText, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDocumentNotText, err)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", fmt.Errorf("%w: no extractable text", domain.ErrDocumentNotText)
	}
	return text, nil
}
