package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/pagination"
	"github.com/andino-labs/policychat/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, input service.UploadDocumentInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error) {
	args := m.Called(ctx, knowledgeBaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListByAuthor(ctx context.Context, author, cursorToken string, limit int) (*pagination.Page[*domain.Document], error) {
	args := m.Called(ctx, author, cursorToken, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Page[*domain.Document]), args.Error(1)
}

func (m *MockDocumentService) Update(ctx context.Context, input service.UpdateDocumentInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id, userEmail string) error {
	args := m.Called(ctx, id, userEmail)
	return args.Error(0)
}

func newTestDocument() *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:              "doc-123",
		Name:            "policy.pdf",
		Author:          "user@example.com",
		KnowledgeBaseID: "kb-123",
		URL:             "https://storage.example.com/doc-123",
		StorageKey:      "kb/kb-123/doc-123/policy.pdf",
		Summary:         "auto policy",
		LinesOfService:  []string{"auto"},
		Profiles:        []string{"agent"},
		SizeBytes:       2048,
		SizeFormatted:   "2.00 KB",
		IndexStatus:     domain.IndexStatusIndexed,
		CreatedAt:       now,
		LastUpdate:      now,
	}
}

func multipartRequest(t *testing.T, method, url string, fields map[string]string, fileField, fileName string, fileContent []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(fileContent)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	ctx := context.WithValue(req.Context(), middleware.UserEmailKey, "user@example.com")
	return req.WithContext(ctx)
}

func TestDocumentHandler_Upload_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(input service.UploadDocumentInput) bool {
		return input.KnowledgeBaseID == "kb-123" &&
			input.Author == "user@example.com" &&
			input.Name == "policy.pdf" &&
			len(input.Data) > 0 &&
			len(input.LinesOfService) == 2
	})).Return(newTestDocument(), nil)

	fields := map[string]string{
		"summary":          "auto policy",
		"lines_of_service": "auto, home",
		"profiles":         "agent",
	}
	req := multipartRequest(t, http.MethodPost, "/knowledge-bases/kb-123/documents", fields, "file", "policy.pdf", []byte("%PDF-1.4 fake"))
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "doc-123", data["id"])
	assert.Equal(t, "2.00 KB", data["size"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Upload_MissingFile(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	req := multipartRequest(t, http.MethodPost, "/knowledge-bases/kb-123/documents", map[string]string{"summary": "x"}, "", "", nil)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file is required")
}

func TestDocumentHandler_Upload_Unauthorized(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/knowledge-bases/kb-123/documents", nil)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDocumentHandler_Upload_NotText(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Upload", mock.Anything, mock.Anything).Return(nil, domain.ErrDocumentNotText)

	req := multipartRequest(t, http.MethodPost, "/knowledge-bases/kb-123/documents", nil, "file", "image.png", []byte{0x89, 0x50})
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "doc-123").Return(newTestDocument(), nil)

	req := requestWithUser(http.MethodGet, "/documents/doc-123", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "https://storage.example.com/doc-123", data["document_url"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "doc-999").Return(nil, domain.ErrDocumentNotFound)

	req := requestWithUser(http.MethodGet, "/documents/doc-999", nil)
	req = withURLParam(req, "id", "doc-999")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_ListByKnowledgeBase(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("ListByKnowledgeBase", mock.Anything, "kb-123").Return([]*domain.Document{newTestDocument()}, nil)

	req := requestWithUser(http.MethodGet, "/knowledge-bases/kb-123/documents", nil)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.ListByKnowledgeBase(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].([]interface{})
	assert.Len(t, data, 1)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("ListByAuthor", mock.Anything, "user@example.com", "", 10).Return(&pagination.Page[*domain.Document]{
		Items:   []*domain.Document{newTestDocument()},
		Next:    "token-abc",
		HasMore: true,
	}, nil)

	req := requestWithUser(http.MethodGet, "/documents?limit=10", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Len(t, data["items"].([]interface{}), 1)
	assert.Equal(t, "token-abc", data["next_cursor"])
	assert.Equal(t, true, data["has_more"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_List_BadLimit(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	req := requestWithUser(http.MethodGet, "/documents?limit=abc", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandler_Update_WithoutFile(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Update", mock.Anything, mock.MatchedBy(func(input service.UpdateDocumentInput) bool {
		return input.ID == "doc-123" && input.Name == "policy-v2.pdf" && input.Data == nil
	})).Return(newTestDocument(), nil)

	req := multipartRequest(t, http.MethodPut, "/documents/doc-123", map[string]string{"name": "policy-v2.pdf"}, "", "", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Update_Forbidden(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Update", mock.Anything, mock.Anything).Return(nil, domain.ErrNotDocumentOwner)

	req := multipartRequest(t, http.MethodPut, "/documents/doc-123", map[string]string{"name": "x"}, "", "", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "doc-123", "user@example.com").Return(nil)

	req := requestWithUser(http.MethodDelete, "/documents/doc-123", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Delete_Forbidden(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "doc-123", "user@example.com").Return(domain.ErrNotDocumentOwner)

	req := requestWithUser(http.MethodDelete, "/documents/doc-123", nil)
	req = withURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockSvc.AssertExpectations(t)
}
