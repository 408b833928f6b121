package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubValidator map[string]string

func (s stubValidator) ValidateJWT(token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("invalid token")
}

func TestAuthMiddleware(t *testing.T) {
	validator := stubValidator{"good": "user-1"}
	var seen string
	h := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/couple", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "user-1", seen)
			} else {
				assert.Empty(t, seen)
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestAuthMiddleware_ErrorBody(t *testing.T) {
	h := AuthMiddleware(stubValidator{})(http.NotFoundHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/couple", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authorization header must be a bearer token","code":"unauthorized"}`, rec.Body.String())
}

func TestBearerToken(t *testing.T) {
	_, err := bearerToken("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = bearerToken("Bearer")
	assert.ErrorIs(t, err, ErrMalformedHeader)

	token, err := bearerToken("bearer  abc ")
	assert.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestValidateWebSocketToken(t *testing.T) {
	validator := stubValidator{"good": "user-1"}

	_, err := ValidateWebSocketToken(httptest.NewRequest(http.MethodGet, "/ws", nil), validator)
	assert.ErrorIs(t, err, ErrMissingToken)

	id, err := ValidateWebSocketToken(httptest.NewRequest(http.MethodGet, "/ws?token=good", nil), validator)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", id)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer good")
	id, err = ValidateWebSocketToken(req, validator)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", id)

	_, err = ValidateWebSocketToken(httptest.NewRequest(http.MethodGet, "/ws?token=bad", nil), validator)
	assert.Error(t, err)
}
