package repository

import (
	"context"
	"fmt"

	"hearth-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryRepository handles database operations for photo memories
type MemoryRepository struct {
	db *pgxpool.Pool
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{db: db}
}

// Create creates a new memory
func (r *MemoryRepository) Create(ctx context.Context, m *models.Memory) error {
	query := `
		INSERT INTO memories (id, couple_id, user_id, s3_key, caption, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.CoupleID, m.UserID, m.S3Key, m.Caption, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create memory: %w", err)
	}
	return nil
}

// ListByCouple retrieves memories by couple ID with pagination
func (r *MemoryRepository) ListByCouple(ctx context.Context, coupleID string, limit, offset int) ([]*models.Memory, int, error) {
	// Get total count
	countQuery := `SELECT COUNT(*) FROM memories WHERE couple_id = $1`
	var total int
	if err := r.db.QueryRow(ctx, countQuery, coupleID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count memories: %w", err)
	}

	query := `
		SELECT id, couple_id, user_id, s3_key, caption, created_at
		FROM memories
		WHERE couple_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, coupleID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get memories: %w", err)
	}
	defer rows.Close()

	var memories []*models.Memory
	for rows.Next() {
		var m models.Memory
		if err := rows.Scan(&m.ID, &m.CoupleID, &m.UserID, &m.S3Key, &m.Caption, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan memory: %w", err)
		}
		memories = append(memories, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating memories: %w", err)
	}

	return memories, total, nil
}
