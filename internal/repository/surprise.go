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

// SurpriseRepository handles database operations for surprises
type SurpriseRepository struct {
	db *pgxpool.Pool
}

// NewSurpriseRepository creates a new surprise repository
func NewSurpriseRepository(db *pgxpool.Pool) *SurpriseRepository {
	return &SurpriseRepository{db: db}
}

// Create creates a new surprise
func (r *SurpriseRepository) Create(ctx context.Context, s *models.Surprise) error {
	query := `
		INSERT INTO surprises (id, couple_id, sender_id, gift_type, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, s.ID, s.CoupleID, s.SenderID, s.GiftType, s.Note, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create surprise: %w", err)
	}
	return nil
}

// Open marks a surprise addressed to recipientID as opened
func (r *SurpriseRepository) Open(ctx context.Context, id, coupleID, recipientID string, at time.Time) (*models.Surprise, error) {
	query := `
		UPDATE surprises SET opened_at = COALESCE(opened_at, $4)
		WHERE id = $1 AND couple_id = $2 AND sender_id <> $3
		RETURNING id, couple_id, sender_id, gift_type, note, created_at, opened_at
	`
	var s models.Surprise
	err := r.db.QueryRow(ctx, query, id, coupleID, recipientID, at).Scan(
		&s.ID, &s.CoupleID, &s.SenderID, &s.GiftType, &s.Note, &s.CreatedAt, &s.OpenedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("surprise %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open surprise: %w", err)
	}
	return &s, nil
}

// ListUnopened returns surprises waiting for recipientID
func (r *SurpriseRepository) ListUnopened(ctx context.Context, coupleID, recipientID string) ([]*models.Surprise, error) {
	query := `
		SELECT id, couple_id, sender_id, gift_type, note, created_at, opened_at
		FROM surprises
		WHERE couple_id = $1 AND sender_id <> $2 AND opened_at IS NULL
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, coupleID, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get surprises: %w", err)
	}
	surprises, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Surprise, error) {
		var s models.Surprise
		err := row.Scan(&s.ID, &s.CoupleID, &s.SenderID, &s.GiftType, &s.Note, &s.CreatedAt, &s.OpenedAt)
		return &s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan surprises: %w", err)
	}
	return surprises, nil
}
