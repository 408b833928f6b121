// Package middleware authenticates API and realtime requests.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type contextKey string

const userIDKey contextKey = "user_id"

var (
	ErrMissingToken    = errors.New("token required")
	ErrMalformedHeader = errors.New("authorization header must be a bearer token")
)

// TokenValidator resolves a bearer token to a user ID
type TokenValidator interface {
	ValidateJWT(token string) (string, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the token's user on the request context
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			userID, err := validator.ValidateJWT(token)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
				unauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// bearerToken extracts the token from an Authorization header value
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(token), nil
}

// WithUserID returns ctx carrying the authenticated user
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the authenticated user, or "" outside AuthMiddleware
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// unauthorized writes a 401 in the API's error body shape
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": "unauthorized"})
}

// ValidateWebSocketToken authenticates a socket upgrade. Browsers cannot set
// headers on upgrades, so the token query parameter is read first and the
// Authorization header is the fallback.
func ValidateWebSocketToken(r *http.Request, validator TokenValidator) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		var err error
		if token, err = bearerToken(r.Header.Get("Authorization")); err != nil {
			return "", err
		}
	}
	return validator.ValidateJWT(token)
}
