package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vantor-labs/vantor/internal/domain"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) CreateWorkspace(ctx context.Context, name string) (*domain.Workspace, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Workspace), args.Error(1)
}

func (m *MockAuthService) CreateAPIKey(ctx context.Context, workspaceID, name string) (string, error) {
	args := m.Called(ctx, workspaceID, name)
	return args.String(0), args.Error(1)
}

func TestAuthHandler_CreateWorkspace_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	workspace := &domain.Workspace{ID: "ws-123", Name: "acme", CreatedAt: time.Now().UTC()}
	mockSvc.On("CreateWorkspace", mock.Anything, "acme").Return(workspace, nil)

	body := `{"name":"acme"}`
	req := httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateWorkspace(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ws-123", data["id"])
	assert.Equal(t, "acme", data["name"])
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateWorkspace_MissingName(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.CreateWorkspace(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")
}

func TestAuthHandler_CreateWorkspace_Duplicate(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateWorkspace", mock.Anything, "acme").Return(nil, domain.ErrWorkspaceAlreadyExists)

	req := httptest.NewRequest(http.MethodPost, "/workspaces", bytes.NewReader([]byte(`{"name":"acme"}`)))
	w := httptest.NewRecorder()

	handler.CreateWorkspace(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandler_CreateAPIKey_Success(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateAPIKey", mock.Anything, "ws-123", "ci key").Return("vnt_abc123", nil)

	body := `{"workspace_id":"ws-123","name":"ci key"}`
	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "vnt_abc123", data["token"])
	mockSvc.AssertExpectations(t)
}

func TestAuthHandler_CreateAPIKey_MissingWorkspace(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(`{"name":"ci key"}`)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "workspace_id is required")
}

func TestAuthHandler_CreateAPIKey_WorkspaceNotFound(t *testing.T) {
	mockSvc := new(MockAuthService)
	handler := NewAuthHandler(mockSvc)

	mockSvc.On("CreateAPIKey", mock.Anything, "ws-999", "ci key").Return("", domain.ErrWorkspaceNotFound)

	body := `{"workspace_id":"ws-999","name":"ci key"}`
	req := httptest.NewRequest(http.MethodPost, "/apikeys", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.CreateAPIKey(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
