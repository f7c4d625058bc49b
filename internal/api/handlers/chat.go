package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vantor-labs/vantor/internal/api"
	"github.com/vantor-labs/vantor/internal/api/middleware"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/service"
)

type ChatbotGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Chatbot, error)
}

type ChatStreamer interface {
	StreamMessage(ctx context.Context, input service.StreamInput, emit service.EmitFunc) error
}

// ChatHandler serves the streaming chat endpoint over Server-Sent Events.
type ChatHandler struct {
	chatbots ChatbotGetter
	chat     ChatStreamer
}

func NewChatHandler(chatbots ChatbotGetter, chat ChatStreamer) *ChatHandler {
	return &ChatHandler{chatbots: chatbots, chat: chat}
}

type ChatTurnRequest struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type ChatStreamRequest struct {
	Message string            `json:"message"`
	History []ChatTurnRequest `json:"history,omitempty"`
}

// Stream handles POST /chat/{chatbotID}/stream. Chunks are sent as SSE
// "chunk" events carrying the JSON stream chunk; the stream closes with a
// single "done" event.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	chatbotID := chi.URLParam(r, "chatbotID")
	if chatbotID == "" {
		api.Error(w, http.StatusBadRequest, "chatbot id is required")
		return
	}

	var req ChatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	chatbot, err := h.chatbots.GetByID(r.Context(), chatbotID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if chatbot.WorkspaceID != workspaceID {
		api.HandleError(w, domain.ErrChatbotNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	history := make([]domain.Turn, 0, len(req.History))
	for _, turn := range req.History {
		role := domain.TurnRole(turn.Role)
		if role != domain.TurnRoleUser && role != domain.TurnRoleModel {
			continue
		}
		history = append(history, domain.Turn{Role: role, Text: turn.Text})
	}

	input := service.StreamInput{
		Chatbot: chatbot,
		History: history,
		Message: req.Message,
	}

	emit := func(chunk service.StreamChunk) error {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.chat.StreamMessage(r.Context(), input, emit); err != nil {
		// Headers are already sent; the best we can do is an error event
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}
