package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/mood"
	"hearth-backend/internal/repository"
	"hearth-backend/internal/streak"

	"github.com/rs/zerolog/log"
)

const tapWriteTries = 3

// CoupleView is a couple as served to one of its members
type CoupleView struct {
	Couple  *models.Couple `json:"couple"`
	Pairing PairingState   `json:"pairing"`
	Offline bool           `json:"offline"`
}

// CoupleStatus is the derived state shown on the home screen
type CoupleStatus struct {
	Mood         mood.Mood `json:"mood"`
	Streak       int       `json:"streak"`
	DaysTogether int       `json:"days_together"`
	TapsToday    int       `json:"taps_today"`
	Partner      *Presence `json:"partner,omitempty"`
}

// CoupleService serves the shared couple record and its cosmetic state
type CoupleService struct {
	writer   coupleWriter
	store    *couplestore.Store
	checkins *CheckinService
	mood     *MoodService
	presence *PresenceService
	loc      *time.Location
	now      func() time.Time
}

// NewCoupleService creates a new couple service
func NewCoupleService(
	couples CoupleRepository,
	store *couplestore.Store,
	publisher Publisher,
	checkins *CheckinService,
	moods *MoodService,
	presence *PresenceService,
	loc *time.Location,
) *CoupleService {
	return &CoupleService{
		writer:   coupleWriter{couples: couples, store: store, publisher: publisher},
		store:    store,
		checkins: checkins,
		mood:     moods,
		presence: presence,
		loc:      loc,
		now:      time.Now,
	}
}

// Get refreshes the user's couple and records today's check-in. When the
// database is unreachable the last cached couple is served flagged offline.
func (s *CoupleService) Get(ctx context.Context, userID string) (*CoupleView, error) {
	c, err := s.store.Refresh(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrNoCouple
	case errors.Is(err, couplestore.ErrOffline):
		if c == nil {
			return nil, networkError("load couple", err)
		}
		return &CoupleView{Couple: c, Pairing: PairingStateOf(c), Offline: true}, nil
	case err != nil:
		return nil, networkError("load couple", err)
	}

	if _, err := s.checkins.Record(ctx, c, userID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to record check-in")
	}
	return &CoupleView{Couple: c, Pairing: PairingStateOf(c)}, nil
}

// Status derives mood, streak and presence for the user's couple
func (s *CoupleService) Status(ctx context.Context, userID string) (*CoupleStatus, error) {
	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.checkins.Streak(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	status := &CoupleStatus{
		Mood:         s.mood.Current(c),
		Streak:       count,
		DaysTogether: streak.DaysTogether(c.MatchedAt, now, s.loc),
		TapsToday:    c.DailyTapCount.Total(streak.Today(now, s.loc)),
	}
	if c.IsPaired() {
		partner, err := s.presence.PartnerPresence(ctx, c, userID)
		if err != nil {
			log.Warn().Err(err).Str("couple_id", c.ID).Msg("Partner presence unavailable")
		} else {
			status.Partner = partner
		}
	}
	return status, nil
}

// Pet records a tap on the creature. The daily counter rolls over on the
// first tap of a new day.
func (s *CoupleService) Pet(ctx context.Context, userID string) (*models.Couple, error) {
	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.IsPaired() {
		return nil, ErrNotPaired
	}

	now := s.now()
	cmd := models.RecordTap{Role: c.RoleOf(userID), At: now, Today: streak.Today(now, s.loc)}
	updated, err := s.writer.applyRetry(ctx, c, cmd, tapWriteTries)
	if err != nil {
		return nil, err
	}
	s.mood.Trigger(ctx, updated, mood.EventPet)
	return updated, nil
}

// SetAccessories replaces the worn accessories. Duplicates are dropped.
func (s *CoupleService) SetAccessories(ctx context.Context, userID string, items []string) (*models.Couple, error) {
	seen := make(map[string]struct{}, len(items))
	clean := make([]string, 0, len(items))
	for _, item := range items {
		if !models.InCatalog(models.Accessories, item) {
			return nil, validationError("unknown accessory %q", item)
		}
		if _, dup := seen[item]; dup {
			continue
		}
		seen[item] = struct{}{}
		clean = append(clean, item)
	}

	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.writer.apply(ctx, c, models.SetAccessories{Items: clean})
}

// SetAccessoryColor tints one accessory
func (s *CoupleService) SetAccessoryColor(ctx context.Context, userID, accessory, color string) (*models.Couple, error) {
	if !models.InCatalog(models.Accessories, accessory) {
		return nil, validationError("unknown accessory %q", accessory)
	}
	if !models.ValidColor(color) {
		return nil, validationError("color must be #RRGGBB, got %q", color)
	}

	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.writer.apply(ctx, c, models.SetAccessoryColor{Accessory: accessory, Color: strings.ToUpper(color)})
}

// SetRoomTheme changes the room background
func (s *CoupleService) SetRoomTheme(ctx context.Context, userID, theme string) (*models.Couple, error) {
	if !models.InCatalog(models.RoomThemes, theme) {
		return nil, validationError("unknown room theme %q", theme)
	}

	c, err := s.writer.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.writer.apply(ctx, c, models.SetRoomTheme{Theme: theme})
}
