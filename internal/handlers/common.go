package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"hearth-backend/internal/services"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 16

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends v as a JSON body
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{services.ErrValidation, "validation_failed", http.StatusBadRequest},
	{services.ErrInvalidCode, "invalid_code", http.StatusNotFound},
	{services.ErrHomeFull, "home_full", http.StatusConflict},
	{services.ErrSelfJoin, "self_join", http.StatusConflict},
	{services.ErrAlreadyInCouple, "already_in_couple", http.StatusConflict},
	{services.ErrNotMatched, "not_matched", http.StatusConflict},
	{services.ErrNothingToAccept, "nothing_to_accept", http.StatusConflict},
	{services.ErrNotPaired, "not_paired", http.StatusConflict},
	{services.ErrNoCouple, "no_couple", http.StatusNotFound},
	{services.ErrNotFound, "not_found", http.StatusNotFound},
	{services.ErrNetwork, "backend_unavailable", http.StatusServiceUnavailable},
}

// statusFor maps a service error to its HTTP status and stable error code
func statusFor(err error) (int, string) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// respondServiceError logs err and writes its mapped status. Internal
// failures are reported without details.
func respondServiceError(w http.ResponseWriter, err error, userID, msg string) {
	status, code := statusFor(err)
	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).Str("user_id", userID).Msg(msg)

	message := err.Error()
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		message = http.StatusText(status)
	}
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// queryInt reads an integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
