package services

import (
	"context"
	"time"

	"hearth-backend/internal/models"
)

// CoupleRepository is the couple storage used by the services
type CoupleRepository interface {
	Create(ctx context.Context, c *models.Couple) error
	GetByID(ctx context.Context, id string) (*models.Couple, error)
	GetByUserID(ctx context.Context, userID string) (*models.Couple, error)
	GetByInviteCode(ctx context.Context, code string) (*models.Couple, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	Update(ctx context.Context, id string, cmd models.Command) (*models.Couple, error)
}

// ProfileRepository is the profile storage used by the services
type ProfileRepository interface {
	Create(ctx context.Context, p *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Touch(ctx context.Context, id string, at time.Time) error
	UpdatePushToken(ctx context.Context, id string, pushToken *string) error
	ListWithPushToken(ctx context.Context) ([]string, error)
}

// CheckinRepository is the check-in storage used by the services
type CheckinRepository interface {
	Upsert(ctx context.Context, checkin models.DailyCheckin) (bool, error)
	ListByCouple(ctx context.Context, coupleID string) ([]models.DailyCheckin, error)
}

// MessageRepository is the message storage used by the services
type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	ListByCouple(ctx context.Context, coupleID string, before time.Time, limit int) ([]*models.Message, error)
}

// SurpriseRepository is the surprise storage used by the services
type SurpriseRepository interface {
	Create(ctx context.Context, s *models.Surprise) error
	Open(ctx context.Context, id, coupleID, recipientID string, at time.Time) (*models.Surprise, error)
	ListUnopened(ctx context.Context, coupleID, recipientID string) ([]*models.Surprise, error)
}

// RitualRepository is the daily ritual storage used by the services
type RitualRepository interface {
	GetOrCreate(ctx context.Context, r *models.DailyRitual) (*models.DailyRitual, error)
	Answer(ctx context.Context, id string, role models.Role, answer string) (*models.DailyRitual, error)
}

// MemoryRepository is the photo memory storage used by the services
type MemoryRepository interface {
	Create(ctx context.Context, m *models.Memory) error
	ListByCouple(ctx context.Context, coupleID string, limit, offset int) ([]*models.Memory, int, error)
}
