package handlers

import (
	"net/http"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// SurpriseHandler handles virtual gifts
type SurpriseHandler struct {
	surpriseService *services.SurpriseService
}

// NewSurpriseHandler creates a new surprise handler
func NewSurpriseHandler(surpriseService *services.SurpriseService) *SurpriseHandler {
	return &SurpriseHandler{
		surpriseService: surpriseService,
	}
}

// SendSurpriseRequest represents a gift
type SendSurpriseRequest struct {
	GiftType string `json:"gift_type"`
	Note     string `json:"note"`
}

// SendSurprise handles POST /api/v1/surprises
func (h *SurpriseHandler) SendSurprise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req SendSurpriseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.surpriseService.Send(ctx, userID, req.GiftType, req.Note)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to send surprise")
		return
	}
	respondJSON(w, http.StatusCreated, s)
}

// GetUnopened handles GET /api/v1/surprises
func (h *SurpriseHandler) GetUnopened(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	surprises, err := h.surpriseService.ListUnopened(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get surprises")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"surprises": surprises})
}

// OpenSurprise handles POST /api/v1/surprises/{surprise_id}/open
func (h *SurpriseHandler) OpenSurprise(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	s, err := h.surpriseService.Open(ctx, userID, chi.URLParam(r, "surprise_id"))
	if err != nil {
		respondServiceError(w, err, userID, "Failed to open surprise")
		return
	}
	respondJSON(w, http.StatusOK, s)
}
