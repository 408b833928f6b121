package repository

import (
	"context"
	"fmt"

	"hearth-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckinRepository handles database operations for daily check-ins
type CheckinRepository struct {
	db *pgxpool.Pool
}

// NewCheckinRepository creates a new check-in repository
func NewCheckinRepository(db *pgxpool.Pool) *CheckinRepository {
	return &CheckinRepository{db: db}
}

// Upsert records a check-in and reports whether it is the first for that day
func (r *CheckinRepository) Upsert(ctx context.Context, checkin models.DailyCheckin) (bool, error) {
	query := `
		INSERT INTO daily_checkins (couple_id, user_id, checkin_date)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, checkin_date) DO NOTHING
	`
	result, err := r.db.Exec(ctx, query, checkin.CoupleID, checkin.UserID, checkin.CheckinDate)
	if err != nil {
		return false, fmt.Errorf("failed to upsert check-in: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListByCouple returns every check-in made by the couple's members
func (r *CheckinRepository) ListByCouple(ctx context.Context, coupleID string) ([]models.DailyCheckin, error) {
	query := `
		SELECT couple_id, user_id, checkin_date::text
		FROM daily_checkins
		WHERE couple_id = $1
		ORDER BY checkin_date
	`
	rows, err := r.db.Query(ctx, query, coupleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins: %w", err)
	}
	checkins, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DailyCheckin, error) {
		var c models.DailyCheckin
		err := row.Scan(&c.CoupleID, &c.UserID, &c.CheckinDate)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan check-ins: %w", err)
	}
	return checkins, nil
}
