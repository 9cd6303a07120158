package handlers

import (
	"io"
	"net/http"

	"github.com/andino-labs/policychat/internal/api"
)

type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// UtilitiesHandler exposes standalone helpers that don't touch persistence.
type UtilitiesHandler struct {
	extractor TextExtractor
}

func NewUtilitiesHandler(extractor TextExtractor) *UtilitiesHandler {
	return &UtilitiesHandler{extractor: extractor}
}

type ExtractTextResponse struct {
	Text string `json:"text"`
}

// ExtractText returns the plain text of an uploaded PDF without storing it.
func (h *UtilitiesHandler) ExtractText(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	text, err := h.extractor.ExtractText(data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ExtractTextResponse{Text: text})
}
