package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"hearth-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	jwtExpDays          = 365
	maxDisplayNameRunes = 40
)

// UserService handles signup and token validation
type UserService struct {
	profiles  ProfileRepository
	jwtSecret string
	now       func() time.Time
}

// NewUserService creates a new user service
func NewUserService(profiles ProfileRepository, jwtSecret string) *UserService {
	return &UserService{
		profiles:  profiles,
		jwtSecret: jwtSecret,
		now:       time.Now,
	}
}

// SignupResult is a new profile with its bearer token
type SignupResult struct {
	Profile *models.Profile `json:"profile"`
	Token   string          `json:"token"`
}

// GenerateJWT generates a JWT token for a user
func (s *UserService) GenerateJWT(userID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.AddDate(0, 0, jwtExpDays).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateJWT validates a JWT token and returns the user ID
func (s *UserService) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user_id not found in token")
	}

	return userID, nil
}

// CreateUser creates a profile and issues its token
func (s *UserService) CreateUser(ctx context.Context, displayName string) (*SignupResult, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, validationError("display name is required")
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameRunes {
		return nil, validationError("display name exceeds %d characters", maxDisplayNameRunes)
	}

	userID := uuid.New().String()

	token, err := s.GenerateJWT(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	profile := &models.Profile{
		ID:          userID,
		DisplayName: displayName,
		CreatedAt:   s.now(),
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, networkError("create profile", err)
	}

	return &SignupResult{Profile: profile, Token: token}, nil
}

// GetProfile returns the user's profile
func (s *UserService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOrNetwork("load profile", err)
	}
	return p, nil
}

// UpdatePushToken registers or clears the device token used for pushes
func (s *UserService) UpdatePushToken(ctx context.Context, userID, pushToken string) error {
	var tok *string
	if pushToken = strings.TrimSpace(pushToken); pushToken != "" {
		tok = &pushToken
	}
	if err := s.profiles.UpdatePushToken(ctx, userID, tok); err != nil {
		return networkError("update push token", err)
	}
	return nil
}
