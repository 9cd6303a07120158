package pdfextract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andino-labs/policychat/internal/domain"
)

func TestExtractText_NotAPDF(t *testing.T) {
	extractor := NewExtractor()

	_, err := extractor.ExtractText([]byte("plain text, not a pdf"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentNotText)
}

func TestExtractText_Empty(t *testing.T) {
	extractor := NewExtractor()

	_, err := extractor.ExtractText(nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentNotText)
}

func TestExtractText_TruncatedHeader(t *testing.T) {
	extractor := NewExtractor()

	// A valid magic prefix with garbage after it must not panic through
	_, err := extractor.ExtractText([]byte("%PDF-1.7\ngarbage"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentNotText)
}
