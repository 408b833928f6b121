package repository

import (
	"context"
	"errors"
	"fmt"

	"hearth-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RitualRepository handles database operations for daily rituals
type RitualRepository struct {
	db *pgxpool.Pool
}

// NewRitualRepository creates a new ritual repository
func NewRitualRepository(db *pgxpool.Pool) *RitualRepository {
	return &RitualRepository{db: db}
}

const ritualColumns = `id, couple_id, ritual_date::text, question, p1_answer, p2_answer`

func scanRitual(row pgx.Row) (*models.DailyRitual, error) {
	var r models.DailyRitual
	if err := row.Scan(&r.ID, &r.CoupleID, &r.RitualDate, &r.Question, &r.P1Answer, &r.P2Answer); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetOrCreate returns the couple's ritual for the date, inserting it when missing
func (r *RitualRepository) GetOrCreate(ctx context.Context, ritual *models.DailyRitual) (*models.DailyRitual, error) {
	query := `
		INSERT INTO daily_rituals (id, couple_id, ritual_date, question)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (couple_id, ritual_date) DO UPDATE SET couple_id = EXCLUDED.couple_id
		RETURNING ` + ritualColumns
	out, err := scanRitual(r.db.QueryRow(ctx, query, ritual.ID, ritual.CoupleID, ritual.RitualDate, ritual.Question))
	if err != nil {
		return nil, fmt.Errorf("failed to get daily ritual: %w", err)
	}
	return out, nil
}

// Answer stores role's answer on a ritual
func (r *RitualRepository) Answer(ctx context.Context, id string, role models.Role, answer string) (*models.DailyRitual, error) {
	column := "p1_answer"
	if role == models.RolePartner2 {
		column = "p2_answer"
	}
	query := `UPDATE daily_rituals SET ` + column + ` = $2 WHERE id = $1 RETURNING ` + ritualColumns
	out, err := scanRitual(r.db.QueryRow(ctx, query, id, answer))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ritual %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to answer ritual: %w", err)
	}
	return out, nil
}
