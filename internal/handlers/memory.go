package handlers

import (
	"net/http"

	"hearth-backend/internal/middleware"
	"hearth-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// MemoryHandler handles the couple's photo memories
type MemoryHandler struct {
	memoryService *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(memoryService *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{
		memoryService: memoryService,
	}
}

// GetMemories handles GET /api/v1/memories
func (h *MemoryHandler) GetMemories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	memories, total, err := h.memoryService.List(ctx, userID, limit, offset)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to get memories")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"memories": memories,
		"total":    total,
	})
}

// UploadMemory handles POST /api/v1/memories/upload
func (h *MemoryHandler) UploadMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req services.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.memoryService.PresignUpload(ctx, userID, req)
	if err != nil {
		respondServiceError(w, err, userID, "Failed to create upload URL")
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("memory_id", res.MemoryID).
		Msg("Memory upload URL issued")

	respondJSON(w, http.StatusOK, res)
}
