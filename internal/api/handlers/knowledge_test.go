package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vantor-labs/vantor/internal/api/middleware"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/service"
)

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) Create(ctx context.Context, input service.CreateInput) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeService) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeService) List(ctx context.Context, input service.ListInput) (*service.ListOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListOutput), args.Error(1)
}

func (m *MockKnowledgeService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestKnowledgeItem() *domain.KnowledgeItem {
	now := time.Now().UTC()
	return &domain.KnowledgeItem{
		ID:          "k-123",
		WorkspaceID: "ws-456",
		Type:        domain.KnowledgeTypeText,
		Status:      domain.KnowledgeStatusProcessing,
		Name:        "Refund policy",
		Content:     "Refunds are issued within 14 days of purchase.",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func requestWithWorkspaceID(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.WorkspaceIDKey, "ws-456")
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestKnowledgeHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	expectedItem := newTestKnowledgeItem()
	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateInput) bool {
		return input.WorkspaceID == "ws-456" && input.Name == "Refund policy"
	})).Return(expectedItem, nil)

	body := `{"type":"text","name":"Refund policy","content":"Refunds are issued within 14 days of purchase."}`
	req := requestWithWorkspaceID(http.MethodPost, "/knowledge", []byte(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "k-123", data["id"])
	assert.Equal(t, "processing", data["status"])
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_Create_WithPayload(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	expectedItem := newTestKnowledgeItem()
	expectedItem.Type = domain.KnowledgeTypeFile
	mockSvc.On("Create", mock.Anything, mock.MatchedBy(func(input service.CreateInput) bool {
		return string(input.Payload) == "raw file bytes" && input.ContentType == "application/pdf"
	})).Return(expectedItem, nil)

	body := `{"type":"file","name":"Pricing sheet","content":"extracted text","payload":"cmF3IGZpbGUgYnl0ZXM=","content_type":"application/pdf"}`
	req := requestWithWorkspaceID(http.MethodPost, "/knowledge", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_Create_InvalidPayloadEncoding(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	body := `{"type":"file","name":"Pricing sheet","content":"extracted text","payload":"not base64!!!"}`
	req := requestWithWorkspaceID(http.MethodPost, "/knowledge", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "payload must be base64 encoded")
}

func TestKnowledgeHandler_Create_Unauthorized(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	body := `{"type":"text","name":"Refund policy","content":"content"}`
	req := httptest.NewRequest(http.MethodPost, "/knowledge", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKnowledgeHandler_Create_InvalidJSON(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	req := requestWithWorkspaceID(http.MethodPost, "/knowledge", []byte(`{invalid`))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestKnowledgeHandler_Create_MissingName(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	body := `{"type":"text","content":"content"}`
	req := requestWithWorkspaceID(http.MethodPost, "/knowledge", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestKnowledgeHandler_Create_InvalidType(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	body := `{"type":"spreadsheet","name":"Refund policy","content":"content"}`
	req := requestWithWorkspaceID(http.MethodPost, "/knowledge", []byte(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid knowledge type")
}

func TestKnowledgeHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "k-123").Return(newTestKnowledgeItem(), nil)

	req := requestWithWorkspaceID(http.MethodGet, "/knowledge/k-123", nil)
	req = withURLParam(req, "id", "k-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "k-999").Return(nil, domain.ErrKnowledgeNotFound)

	req := requestWithWorkspaceID(http.MethodGet, "/knowledge/k-999", nil)
	req = withURLParam(req, "id", "k-999")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_Get_WrongWorkspace(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	item := newTestKnowledgeItem()
	item.WorkspaceID = "ws-other"
	mockSvc.On("GetByID", mock.Anything, "k-123").Return(item, nil)

	req := requestWithWorkspaceID(http.MethodGet, "/knowledge/k-123", nil)
	req = withURLParam(req, "id", "k-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	// Items owned by another workspace look absent
	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	mockSvc.On("GetByID", mock.Anything, "k-123").Return(newTestKnowledgeItem(), nil)
	mockSvc.On("Delete", mock.Anything, "k-123").Return(nil)

	req := requestWithWorkspaceID(http.MethodDelete, "/knowledge/k-123", nil)
	req = withURLParam(req, "id", "k-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_Delete_WrongWorkspace(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	item := newTestKnowledgeItem()
	item.WorkspaceID = "ws-other"
	mockSvc.On("GetByID", mock.Anything, "k-123").Return(item, nil)

	req := requestWithWorkspaceID(http.MethodDelete, "/knowledge/k-123", nil)
	req = withURLParam(req, "id", "k-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertNotCalled(t, "Delete", mock.Anything, "k-123")
}

func TestKnowledgeHandler_List_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	output := &service.ListOutput{
		Items:   []*domain.KnowledgeItem{newTestKnowledgeItem()},
		Cursor:  "eyJ1cGRhdGVkX2F0IjoiIn0",
		HasMore: true,
	}
	mockSvc.On("List", mock.Anything, mock.MatchedBy(func(input service.ListInput) bool {
		return input.WorkspaceID == "ws-456" && input.Limit == 5 && input.Cursor == "abc"
	})).Return(output, nil)

	req := requestWithWorkspaceID(http.MethodGet, "/knowledge?limit=5&cursor=abc", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, true, data["has_more"])
	assert.Len(t, data["items"], 1)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeHandler_List_DefaultLimit(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewKnowledgeHandler(mockSvc)

	output := &service.ListOutput{Items: []*domain.KnowledgeItem{}}
	mockSvc.On("List", mock.Anything, mock.MatchedBy(func(input service.ListInput) bool {
		return input.Limit == 20 && input.Cursor == ""
	})).Return(output, nil)

	req := requestWithWorkspaceID(http.MethodGet, "/knowledge", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}
