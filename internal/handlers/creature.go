package handlers

import (
	"net/http"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/models"
	"hearth-backend/internal/services"
)

// CreatureHandler handles the creature negotiation
type CreatureHandler struct {
	negotiationService *services.NegotiationService
}

// NewCreatureHandler creates a new creature handler
func NewCreatureHandler(negotiationService *services.NegotiationService) *CreatureHandler {
	return &CreatureHandler{
		negotiationService: negotiationService,
	}
}

// ProposeRequest represents a creature proposal
type ProposeRequest struct {
	CreatureID string `json:"creature_id"`
	Name       string `json:"name"`
}

// NegotiationResponse carries the couple with the caller's negotiation state
type NegotiationResponse struct {
	Couple      *models.Couple            `json:"couple"`
	Negotiation services.NegotiationState `json:"negotiation"`
}

func negotiationResponse(c *models.Couple, userID string) NegotiationResponse {
	return NegotiationResponse{
		Couple:      c,
		Negotiation: services.DeriveNegotiation(c, c.RoleOf(userID)),
	}
}

// GetState handles GET /api/v1/couple/creature
func (h *CreatureHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, state, err := h.negotiationService.State(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get negotiation state")
		return
	}
	respondJSON(w, http.StatusOK, NegotiationResponse{Couple: c, Negotiation: state})
}

// Propose handles POST /api/v1/couple/creature/propose
func (h *CreatureHandler) Propose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req ProposeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.negotiationService.Propose(ctx, userID, req.CreatureID, req.Name)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to propose creature")
		return
	}
	respondJSON(w, http.StatusOK, negotiationResponse(c, userID))
}

// Accept handles POST /api/v1/couple/creature/accept
func (h *CreatureHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, err := h.negotiationService.AcceptPartner(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to accept proposal")
		return
	}
	respondJSON(w, http.StatusOK, negotiationResponse(c, userID))
}

// Finalize handles POST /api/v1/couple/creature/finalize
func (h *CreatureHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, err := h.negotiationService.Finalize(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to finalize creature")
		return
	}
	respondJSON(w, http.StatusOK, negotiationResponse(c, userID))
}

// Reset handles POST /api/v1/couple/creature/reset
func (h *CreatureHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	c, err := h.negotiationService.Reset(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to reset negotiation")
		return
	}
	respondJSON(w, http.StatusOK, negotiationResponse(c, userID))
}
