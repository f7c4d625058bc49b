package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vantor-labs/vantor/internal/api"
	"github.com/vantor-labs/vantor/internal/api/middleware"
	"github.com/vantor-labs/vantor/internal/domain"
)

type LeadService interface {
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Lead, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error
}

type LeadHandler struct {
	svc LeadService
}

func NewLeadHandler(svc LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

type LeadResponse struct {
	ID             string `json:"id"`
	WorkspaceID    string `json:"workspace_id"`
	Name           string `json:"name"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	InquirySummary string `json:"inquiry_summary"`
	Status         string `json:"status"`
	CapturedAt     string `json:"captured_at"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status"`
}

func leadToResponse(l *domain.Lead) *LeadResponse {
	return &LeadResponse{
		ID:             l.ID,
		WorkspaceID:    l.WorkspaceID,
		Name:           l.Name,
		Email:          l.Email,
		Phone:          l.Phone,
		InquirySummary: l.InquirySummary,
		Status:         string(l.Status),
		CapturedAt:     l.CapturedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	leads, err := h.svc.ListByWorkspace(r.Context(), workspaceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*LeadResponse, len(leads))
	for i, l := range leads {
		responses[i] = leadToResponse(l)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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

	lead, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if lead.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrLeadNotFound)
		return
	}

	var req UpdateLeadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		api.Error(w, http.StatusBadRequest, "status is required")
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), id, domain.LeadStatus(req.Status)); err != nil {
		api.HandleError(w, err)
		return
	}

	updated, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, leadToResponse(updated))
}
