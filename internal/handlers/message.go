package handlers

import (
	"net/http"
	"time"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/services"
)

// MessageHandler handles partner messages
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// SendMessageRequest represents a message body
type SendMessageRequest struct {
	Body string `json:"body"`
}

// SendMessage handles POST /api/v1/messages
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.messageService.Send(ctx, userID, req.Body)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// GetMessages handles GET /api/v1/messages?before=RFC3339&limit=N
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var before time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, "before must be an RFC3339 timestamp", http.StatusBadRequest)
			return
		}
		before = t
	}

	messages, err := h.messageService.List(ctx, userID, before, queryInt(r, "limit", 0))
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get messages")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}
