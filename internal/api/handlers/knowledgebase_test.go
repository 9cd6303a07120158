package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/andino-labs/policychat/internal/domain"
	"github.com/andino-labs/policychat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockKnowledgeBaseService struct {
	mock.Mock
}

func (m *MockKnowledgeBaseService) Create(ctx context.Context, input service.CreateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) Update(ctx context.Context, input service.UpdateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) Delete(ctx context.Context, id, userEmail string) error {
	args := m.Called(ctx, id, userEmail)
	return args.Error(0)
}

func newTestKnowledgeBase() *domain.KnowledgeBase {
	now := time.Now().UTC()
	return &domain.KnowledgeBase{
		ID:             "kb-123",
		Name:           "claims",
		Description:    "claims policies",
		Author:         "user@example.com",
		TotalDocuments: 2,
		CreatedAt:      now,
		LastUpdate:     now,
	}
}

func requestWithUser(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserEmailKey, "user@example.com")
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestKnowledgeBaseHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	expected := newTestKnowledgeBase()
	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateKnowledgeBaseInput) bool {
		return input.Name == "claims" && input.Author == "user@example.com"
	})).Return(expected, nil)

	body := `{"name":"claims","description":"claims policies"}`
	req := requestWithUser(http.MethodPost, "/knowledge-bases", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "kb-123", data["id"])
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Create_Unauthorized(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	body := `{"name":"claims"}`
	req := httptest.NewRequest(http.MethodPost, "/knowledge-bases", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKnowledgeBaseHandler_Create_MissingName(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	req := requestWithUser(http.MethodPost, "/knowledge-bases", []byte(`{"description":"x"}`))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestKnowledgeBaseHandler_Create_AlreadyExists(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("Create", mock.Anything, mock.Anything).Return(nil, domain.ErrKnowledgeBaseAlreadyExists)

	body := `{"name":"claims"}`
	req := requestWithUser(http.MethodPost, "/knowledge-bases", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "kb-123").Return(newTestKnowledgeBase(), nil)

	req := requestWithUser(http.MethodGet, "/knowledge-bases/kb-123", nil)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "kb-999").Return(nil, domain.ErrKnowledgeBaseNotFound)

	req := requestWithUser(http.MethodGet, "/knowledge-bases/kb-999", nil)
	req = withURLParam(req, "id", "kb-999")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_List_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("List", mock.Anything).Return([]*domain.KnowledgeBase{newTestKnowledgeBase()}, nil)

	req := requestWithUser(http.MethodGet, "/knowledge-bases", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].([]interface{})
	assert.Len(t, data, 1)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Update_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("Update", mock.Anything, mock.MatchedBy(func(input service.UpdateKnowledgeBaseInput) bool {
		return input.ID == "kb-123" && input.Name == "claims-2025" && input.UserEmail == "user@example.com"
	})).Return(newTestKnowledgeBase(), nil)

	body := `{"name":"claims-2025"}`
	req := requestWithUser(http.MethodPut, "/knowledge-bases/kb-123", []byte(body))
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Delete_NotOwner(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "kb-123", "user@example.com").Return(domain.ErrNotKnowledgeBaseOwner)

	req := requestWithUser(http.MethodDelete, "/knowledge-bases/kb-123", nil)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("Delete", mock.Anything, "kb-123", "user@example.com").Return(nil)

	req := requestWithUser(http.MethodDelete, "/knowledge-bases/kb-123", nil)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}
