package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vantor-labs/vantor/internal/api"
	"github.com/vantor-labs/vantor/internal/api/middleware"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/service"
)

type ChatbotService interface {
	Create(ctx context.Context, input service.ChatbotInput) (*domain.Chatbot, error)
	Update(ctx context.Context, id string, input service.ChatbotInput) (*domain.Chatbot, error)
	GetByID(ctx context.Context, id string) (*domain.Chatbot, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.Chatbot, error)
	Delete(ctx context.Context, id string) error
}

type ChatbotHandler struct {
	svc ChatbotService
}

func NewChatbotHandler(svc ChatbotService) *ChatbotHandler {
	return &ChatbotHandler{svc: svc}
}

type WebhookActionRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	URL         string             `json:"url"`
	Method      string             `json:"method"`
	Headers     map[string]string  `json:"headers,omitempty"`
	Parameters  domain.ParamSchema `json:"parameters"`
}

type ChatbotRequest struct {
	Name              string                 `json:"name"`
	Model             string                 `json:"model,omitempty"`
	SystemInstruction string                 `json:"system_instruction,omitempty"`
	LeadCapture       bool                   `json:"lead_capture"`
	WebSearch         bool                   `json:"web_search"`
	Actions           []WebhookActionRequest `json:"actions,omitempty"`
}

type WebhookActionResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	URL         string             `json:"url"`
	Method      string             `json:"method"`
	Headers     map[string]string  `json:"headers,omitempty"`
	Parameters  domain.ParamSchema `json:"parameters"`
}

type ChatbotResponse struct {
	ID                string                  `json:"id"`
	WorkspaceID       string                  `json:"workspace_id"`
	Name              string                  `json:"name"`
	Model             string                  `json:"model"`
	SystemInstruction string                  `json:"system_instruction"`
	LeadCapture       bool                    `json:"lead_capture"`
	WebSearch         bool                    `json:"web_search"`
	Actions           []WebhookActionResponse `json:"actions"`
	CreatedAt         string                  `json:"created_at"`
	UpdatedAt         string                  `json:"updated_at"`
}

func chatbotToResponse(c *domain.Chatbot) *ChatbotResponse {
	actions := make([]WebhookActionResponse, len(c.Actions))
	for i, a := range c.Actions {
		actions[i] = WebhookActionResponse{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			URL:         a.URL,
			Method:      a.Method,
			Headers:     a.Headers,
			Parameters:  a.Parameters,
		}
	}
	return &ChatbotResponse{
		ID:                c.ID,
		WorkspaceID:       c.WorkspaceID,
		Name:              c.Name,
		Model:             c.Model,
		SystemInstruction: c.SystemInstruction,
		LeadCapture:       c.LeadCapture,
		WebSearch:         c.WebSearch,
		Actions:           actions,
		CreatedAt:         c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:         c.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func chatbotInputFromRequest(workspaceID string, req ChatbotRequest) service.ChatbotInput {
	actions := make([]domain.WebhookAction, len(req.Actions))
	for i, a := range req.Actions {
		actions[i] = domain.WebhookAction{
			Name:        a.Name,
			Description: a.Description,
			URL:         a.URL,
			Method:      a.Method,
			Headers:     a.Headers,
			Parameters:  a.Parameters,
		}
	}
	return service.ChatbotInput{
		WorkspaceID:       workspaceID,
		Name:              req.Name,
		Model:             req.Model,
		SystemInstruction: req.SystemInstruction,
		LeadCapture:       req.LeadCapture,
		WebSearch:         req.WebSearch,
		Actions:           actions,
	}
}

func (h *ChatbotHandler) Create(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	chatbot, err := h.svc.Create(r.Context(), chatbotInputFromRequest(workspaceID, req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, chatbotToResponse(chatbot))
}

func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	chatbot, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if chatbot.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrChatbotNotFound)
		return
	}

	api.Success(w, http.StatusOK, chatbotToResponse(chatbot))
}

func (h *ChatbotHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chatbots, err := h.svc.ListByWorkspace(r.Context(), workspaceID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ChatbotResponse, len(chatbots))
	for i, c := range chatbots {
		responses[i] = chatbotToResponse(c)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *ChatbotHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	existing, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if existing.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrChatbotNotFound)
		return
	}

	var req ChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	chatbot, err := h.svc.Update(r.Context(), id, chatbotInputFromRequest(workspaceID, req))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chatbotToResponse(chatbot))
}

func (h *ChatbotHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	existing, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if existing.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrChatbotNotFound)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
