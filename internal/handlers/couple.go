package handlers

import (
	"net/http"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/models"
	"hearth-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// CoupleHandler handles the shared couple record and the creature's room
type CoupleHandler struct {
	coupleService *services.CoupleService
}

// NewCoupleHandler creates a new couple handler
func NewCoupleHandler(coupleService *services.CoupleService) *CoupleHandler {
	return &CoupleHandler{
		coupleService: coupleService,
	}
}

// AccessoriesRequest represents the worn accessory list
type AccessoriesRequest struct {
	Accessories []string `json:"accessories"`
}

// ColorRequest represents an accessory tint
type ColorRequest struct {
	Color string `json:"color"`
}

// RoomRequest represents a room theme change
type RoomRequest struct {
	Theme string `json:"theme"`
}

// GetCouple handles GET /api/v1/couple
func (h *CoupleHandler) GetCouple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	view, err := h.coupleService.Get(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get couple")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// GetStatus handles GET /api/v1/couple/status
func (h *CoupleHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	status, err := h.coupleService.Status(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get couple status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Pet handles POST /api/v1/couple/pet
func (h *CoupleHandler) Pet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, err := h.coupleService.Pet(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to pet creature")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// SetAccessories handles PUT /api/v1/couple/accessories
func (h *CoupleHandler) SetAccessories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req AccessoriesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.coupleService.SetAccessories(ctx, userID, req.Accessories)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to set accessories")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// SetAccessoryColor handles PUT /api/v1/couple/accessories/{accessory_id}/color
func (h *CoupleHandler) SetAccessoryColor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	accessoryID := chi.URLParam(r, "accessory_id")

	var req ColorRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.coupleService.SetAccessoryColor(ctx, userID, accessoryID, req.Color)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to set accessory color")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// SetRoom handles PUT /api/v1/couple/room
func (h *CoupleHandler) SetRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req RoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.coupleService.SetRoomTheme(ctx, userID, req.Theme)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to set room theme")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// Catalog handles GET /api/v1/catalog
func Catalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{
		"creatures":   models.Creatures,
		"accessories": models.Accessories,
		"room_themes": models.RoomThemes,
		"gift_types":  models.GiftTypes,
	})
}
