package handlers

import (
	"net/http"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PairHandler handles home creation and joining
type PairHandler struct {
	pairingService *services.PairingService
}

// NewPairHandler creates a new pair handler
func NewPairHandler(pairingService *services.PairingService) *PairHandler {
	return &PairHandler{
		pairingService: pairingService,
	}
}

// JoinHomeRequest represents the request body for joining a home
type JoinHomeRequest struct {
	InviteCode string `json:"invite_code"`
}

// CreateHome handles POST /api/v1/couple
func (h *PairHandler) CreateHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, err := h.pairingService.CreateHome(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to create home")
		return
	}

	respondJSON(w, http.StatusOK, services.CoupleView{Couple: c, Pairing: services.PairingStateOf(c)})
}

// JoinHome handles POST /api/v1/couple/join
func (h *PairHandler) JoinHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req JoinHomeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.InviteCode == "" {
		respondError(w, "invite_code is required", http.StatusBadRequest)
		return
	}

	c, err := h.pairingService.JoinHome(ctx, userID, req.InviteCode)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to join home")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("couple_id", c.ID).
		Msg("Home joined")

	respondJSON(w, http.StatusOK, services.CoupleView{Couple: c, Pairing: services.PairingStateOf(c)})
}

// WaitForPartner handles GET /api/v1/couple/wait. It holds the request until
// the partner joins or the wait times out, then returns the current state.
func (h *PairHandler) WaitForPartner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, err := h.pairingService.WaitForPartner(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		respondServiceError(w, err, userID, "Failed to wait for partner")
		return
	}

	respondJSON(w, http.StatusOK, services.CoupleView{Couple: c, Pairing: services.PairingStateOf(c)})
}
