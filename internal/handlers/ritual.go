package handlers

import (
	"net/http"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/services"
)

// RitualHandler handles the daily question
type RitualHandler struct {
	ritualService *services.RitualService
}

// NewRitualHandler creates a new ritual handler
func NewRitualHandler(ritualService *services.RitualService) *RitualHandler {
	return &RitualHandler{
		ritualService: ritualService,
	}
}

// AnswerRequest represents an answer to today's question
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// GetToday handles GET /api/v1/rituals/today
func (h *RitualHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	view, err := h.ritualService.Today(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get today's ritual")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// AnswerToday handles POST /api/v1/rituals/today/answer
func (h *RitualHandler) AnswerToday(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.ritualService.Answer(ctx, userID, req.Answer)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to answer ritual")
		return
	}
	respondJSON(w, http.StatusOK, view)
}
