package handlers

import (
	"net/http"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// CreateUserRequest represents the signup body
type CreateUserRequest struct {
	DisplayName string `json:"display_name"`
}

// PushTokenRequest represents the device token body
type PushTokenRequest struct {
	Token string `json:"token"`
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.userService.CreateUser(ctx, req.DisplayName)
	if err != nil {
		respondServiceError(w, err, "", "Failed to create user")
		return
	}

	log.Info().
		Str("user_id", res.Profile.ID).
		Msg("User created")

	respondJSON(w, http.StatusCreated, res)
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	profile, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// UpdatePushToken handles PUT /api/v1/users/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.UpdatePushToken(ctx, userID, req.Token); err != nil {
		respondServiceError(w, err, userID, "Failed to update push token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
