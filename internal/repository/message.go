package repository

import (
	"context"
	"fmt"
	"time"

	"hearth-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository handles database operations for messages
type MessageRepository struct {
	db *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create creates a new message
func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	query := `
		INSERT INTO messages (id, couple_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.CoupleID, m.SenderID, m.Body, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByCouple returns messages older than before, newest first
func (r *MessageRepository) ListByCouple(ctx context.Context, coupleID string, before time.Time, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, couple_id, sender_id, body, created_at
		FROM messages
		WHERE couple_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, coupleID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Message, error) {
		var m models.Message
		err := row.Scan(&m.ID, &m.CoupleID, &m.SenderID, &m.Body, &m.CreatedAt)
		return &m, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}
	return messages, nil
}
