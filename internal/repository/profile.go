package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hearth-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create creates a new profile
func (r *ProfileRepository) Create(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, display_name, last_active_at, push_token, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.DisplayName, p.LastActiveAt, p.PushToken, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `
		SELECT id, display_name, last_active_at, push_token, created_at
		FROM profiles
		WHERE id = $1
	`
	var p models.Profile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.DisplayName, &p.LastActiveAt, &p.PushToken, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// Touch records a presence heartbeat
func (r *ProfileRepository) Touch(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE profiles SET last_active_at = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last_active_at: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdatePushToken updates the push token for a profile
func (r *ProfileRepository) UpdatePushToken(ctx context.Context, id string, pushToken *string) error {
	query := `UPDATE profiles SET push_token = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, pushToken, id)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}

// ListWithPushToken returns the IDs of every profile that can receive pushes
func (r *ProfileRepository) ListWithPushToken(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM profiles WHERE push_token IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to list push recipients: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan push recipients: %w", err)
	}
	return ids, nil
}
