package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/vantor-labs/vantor/internal/api"
	"github.com/vantor-labs/vantor/internal/api/middleware"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/service"
)

type KnowledgeService interface {
	Create(ctx context.Context, input service.CreateInput) (*domain.KnowledgeItem, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	List(ctx context.Context, input service.ListInput) (*service.ListOutput, error)
	Delete(ctx context.Context, id string) error
}

type KnowledgeHandler struct {
	svc KnowledgeService
}

func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

type CreateKnowledgeRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	// Payload carries the base64-encoded raw file for file-backed items.
	Payload     string `json:"payload,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type KnowledgeResponse struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Name        string `json:"name"`
	Content     string `json:"content"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func knowledgeToResponse(k *domain.KnowledgeItem) *KnowledgeResponse {
	return &KnowledgeResponse{
		ID:          k.ID,
		WorkspaceID: k.WorkspaceID,
		Type:        string(k.Type),
		Status:      string(k.Status),
		Name:        k.Name,
		Content:     k.Content,
		CreatedAt:   k.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:   k.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *KnowledgeHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateKnowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Type == "" {
		api.Error(w, http.StatusBadRequest, "type is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	knowledgeType := domain.KnowledgeType(req.Type)
	if !isValidKnowledgeType(knowledgeType) {
		api.Error(w, http.StatusBadRequest, "invalid knowledge type")
		return
	}

	var payload []byte
	if req.Payload != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "payload must be base64 encoded")
			return
		}
		payload = decoded
	}

	input := service.CreateInput{
		WorkspaceID: workspaceID,
		Type:        knowledgeType,
		Name:        req.Name,
		Content:     req.Content,
		Payload:     payload,
		ContentType: req.ContentType,
	}

	item, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, knowledgeToResponse(item))
}

func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	// Items of other workspaces are indistinguishable from absent ones
	if item.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrKnowledgeNotFound)
		return
	}

	api.Success(w, http.StatusOK, knowledgeToResponse(item))
}

func (h *KnowledgeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if item.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrKnowledgeNotFound)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

type KnowledgeListResponse struct {
	Items   []*KnowledgeResponse `json:"items"`
	Cursor  string               `json:"cursor,omitempty"`
	HasMore bool                 `json:"has_more"`
}

func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	input := service.ListInput{
		WorkspaceID: workspaceID,
		Cursor:      cursor,
		Limit:       limit,
	}

	output, err := h.svc.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*KnowledgeResponse, len(output.Items))
	for i, item := range output.Items {
		responses[i] = knowledgeToResponse(item)
	}

	api.Success(w, http.StatusOK, KnowledgeListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func isValidKnowledgeType(t domain.KnowledgeType) bool {
	switch t {
	case domain.KnowledgeTypeText, domain.KnowledgeTypeFile, domain.KnowledgeTypeWebsite, domain.KnowledgeTypeQnA:
		return true
	}
	return false
}
