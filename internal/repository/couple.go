package repository

import (
	"context"
	"errors"
	"fmt"

	"hearth-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const coupleColumns = `id, partner1_id, partner2_id, invite_code, matched_at,
	creature_type, creature_name, p1_choice, p2_choice, p1_name_choice, p2_name_choice,
	accessories, accessory_colors, room_theme, last_petted_at, daily_tap_count,
	version, created_at, updated_at`

// CoupleRepository handles database operations for couples
type CoupleRepository struct {
	db *pgxpool.Pool
}

// NewCoupleRepository creates a new couple repository
func NewCoupleRepository(db *pgxpool.Pool) *CoupleRepository {
	return &CoupleRepository{db: db}
}

func scanCouple(row pgx.Row) (*models.Couple, error) {
	var c models.Couple
	err := row.Scan(
		&c.ID, &c.Partner1ID, &c.Partner2ID, &c.InviteCode, &c.MatchedAt,
		&c.CreatureType, &c.CreatureName, &c.P1Choice, &c.P2Choice, &c.P1NameChoice, &c.P2NameChoice,
		&c.Accessories, &c.AccessoryColors, &c.RoomTheme, &c.LastPettedAt, &c.DailyTapCount,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create creates a new couple
func (r *CoupleRepository) Create(ctx context.Context, c *models.Couple) error {
	query := `
		INSERT INTO couples (id, partner1_id, invite_code, accessories, accessory_colors,
			room_theme, daily_tap_count, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.Partner1ID, c.InviteCode, c.Accessories, c.AccessoryColors,
		c.RoomTheme, c.DailyTapCount, c.Version, c.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("invite code %s: %w", c.InviteCode, ErrDuplicate)
		}
		return fmt.Errorf("failed to create couple: %w", err)
	}
	return nil
}

// GetByID retrieves a couple by ID
func (r *CoupleRepository) GetByID(ctx context.Context, id string) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + ` FROM couples WHERE id = $1`
	c, err := scanCouple(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("couple %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get couple: %w", err)
	}
	return c, nil
}

// GetByUserID retrieves the couple where the user is either partner,
// preferring a paired couple over homes still awaiting a partner
func (r *CoupleRepository) GetByUserID(ctx context.Context, userID string) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + `
		FROM couples
		WHERE partner1_id = $1 OR partner2_id = $1
		ORDER BY (partner2_id IS NOT NULL) DESC, created_at DESC
		LIMIT 1`
	c, err := scanCouple(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("couple for user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get couple by user id: %w", err)
	}
	return c, nil
}

// GetByInviteCode retrieves the couple owning an invite code, ignoring case
func (r *CoupleRepository) GetByInviteCode(ctx context.Context, code string) (*models.Couple, error) {
	query := `SELECT ` + coupleColumns + ` FROM couples WHERE invite_code = upper($1)`
	c, err := scanCouple(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invite code: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get couple by invite code: %w", err)
	}
	return c, nil
}

// InviteCodeExists checks if an invite code is already taken
func (r *CoupleRepository) InviteCodeExists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM couples WHERE invite_code = upper($1))`
	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check invite code existence: %w", err)
	}
	return exists, nil
}

// Update applies a command to the stored couple and returns the new row.
// Conditional commands return ErrConflict when their precondition fails.
func (r *CoupleRepository) Update(ctx context.Context, id string, cmd models.Command) (*models.Couple, error) {
	set, cond, args, err := updateClause(cmd)
	if err != nil {
		return nil, err
	}
	query := `UPDATE couples SET ` + set + `, version = version + 1, updated_at = now()
		WHERE id = $1` + cond + `
		RETURNING ` + coupleColumns
	c, err := scanCouple(r.db.QueryRow(ctx, query, append([]any{id}, args...)...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if cond != "" {
				return nil, fmt.Errorf("%s on couple %s: %w", cmd.Name(), id, ErrConflict)
			}
			return nil, fmt.Errorf("couple %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to apply %s: %w", cmd.Name(), err)
	}
	return c, nil
}

// updateClause maps a command to its SET list, extra WHERE predicate and
// arguments numbered from $2. Predicates mirror the commands' Allowed methods.
func updateClause(cmd models.Command) (set, cond string, args []any, err error) {
	switch c := cmd.(type) {
	case models.SetInviteCode:
		return `invite_code = upper($2)`, "", []any{c.Code}, nil
	case models.JoinPartner:
		return `partner2_id = $2, matched_at = COALESCE(matched_at, $3)`,
			` AND partner2_id IS NULL`, []any{c.UserID, c.At}, nil
	case models.SetChoice:
		prefix, err := rolePrefix(c.Role)
		if err != nil {
			return "", "", nil, err
		}
		return fmt.Sprintf(`%s_choice = $2, %s_name_choice = $3`, prefix, prefix),
			"", []any{c.CreatureID, c.CreatureName}, nil
	case models.Finalize:
		return `creature_type = p1_choice, creature_name = btrim(p1_name_choice),
			p1_choice = NULL, p2_choice = NULL, p1_name_choice = NULL, p2_name_choice = NULL`,
			` AND p1_choice IS NOT NULL AND p1_choice = p2_choice
			AND lower(btrim(p1_name_choice)) = lower(btrim(p2_name_choice))`, nil, nil
	case models.ResetNegotiation:
		return `p1_choice = NULL, p2_choice = NULL, p1_name_choice = NULL, p2_name_choice = NULL`,
			"", nil, nil
	case models.SetAccessories:
		items := c.Items
		if items == nil {
			items = []string{}
		}
		return `accessories = $2`, "", []any{items}, nil
	case models.SetAccessoryColor:
		return `accessory_colors = accessory_colors || jsonb_build_object($2::text, $3::text)`,
			"", []any{c.Accessory, c.Color}, nil
	case models.SetRoomTheme:
		return `room_theme = $2`, "", []any{c.Theme}, nil
	case models.RecordTap:
		prefix := "partner1"
		if c.Role == models.RolePartner2 {
			prefix = "partner2"
		}
		return fmt.Sprintf(`last_petted_at = $2, daily_tap_count = CASE
			WHEN daily_tap_count->>'date' = $3
				THEN jsonb_set(daily_tap_count, '{%[1]s}', to_jsonb(COALESCE((daily_tap_count->>'%[1]s')::int, 0) + 1))
			ELSE jsonb_build_object('partner1', 0, 'partner2', 0, 'date', $3::text) || jsonb_build_object('%[1]s', 1)
			END`, prefix), "", []any{c.At, c.Today}, nil
	default:
		return "", "", nil, fmt.Errorf("unsupported couple command %T", cmd)
	}
}

func rolePrefix(role models.Role) (string, error) {
	switch role {
	case models.RolePartner1:
		return "p1", nil
	case models.RolePartner2:
		return "p2", nil
	default:
		return "", fmt.Errorf("invalid role %d", role)
	}
}
