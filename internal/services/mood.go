package services

import (
	"context"
	"sync"
	"time"

	"hearth-backend/internal/config"
	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/mood"
	"hearth-backend/internal/streak"

	"github.com/rs/zerolog/log"
)

// MoodUpdate is the payload of a mood_changed push
type MoodUpdate struct {
	CoupleID string    `json:"couple_id"`
	Mood     mood.Mood `json:"mood"`
}

// MoodService derives couple moods and pushes changes to both partners
type MoodService struct {
	rules     mood.Rules
	tick      time.Duration
	loc       *time.Location
	store     *couplestore.Store
	publisher Publisher
	overrides *mood.Overrides
	now       func() time.Time

	mu   sync.Mutex
	last map[string]mood.Mood
}

// NewMoodService creates a new mood service
func NewMoodService(cfg config.MoodConfig, loc *time.Location, store *couplestore.Store, publisher Publisher) *MoodService {
	s := &MoodService{
		rules: mood.Rules{
			NeglectAfter:    cfg.NeglectAfter,
			NightStartHour:  cfg.NightStartHour,
			NightEndHour:    cfg.NightEndHour,
			ExcitedTapCount: cfg.ExcitedTapCount,
		},
		tick:      cfg.TickInterval,
		loc:       loc,
		store:     store,
		publisher: publisher,
		now:       time.Now,
		last:      make(map[string]mood.Mood),
	}
	s.overrides = mood.NewOverrides(s.expired)
	return s
}

// Current returns the couple's mood right now
func (s *MoodService) Current(c *models.Couple) mood.Mood {
	now := s.now().In(s.loc)
	override, _ := s.overrides.Active(c.ID)
	return s.rules.Derive(mood.Inputs{
		Now:          now,
		LastPettedAt: c.LastPettedAt,
		TapsToday:    c.DailyTapCount.Total(streak.Today(now, s.loc)),
		Override:     override,
	})
}

// Trigger starts the transient reaction for ev and pushes the new mood
func (s *MoodService) Trigger(ctx context.Context, c *models.Couple, ev mood.Event) {
	if _, ok := s.overrides.Trigger(c.ID, ev); !ok {
		return
	}
	s.Recompute(ctx, c)
}

// Recompute derives the mood and pushes it when it differs from the last one sent
func (s *MoodService) Recompute(ctx context.Context, c *models.Couple) mood.Mood {
	m := s.Current(c)

	s.mu.Lock()
	changed := s.last[c.ID] != m
	s.last[c.ID] = m
	s.mu.Unlock()

	if changed {
		publish(ctx, s.publisher, Event{
			CoupleID:   c.ID,
			Recipients: c.Members(),
			Message: WSMessage{
				Type:      MsgMoodChanged,
				Timestamp: s.now().UnixMilli(),
				Data:      MoodUpdate{CoupleID: c.ID, Mood: m},
			},
		})
	}
	return m
}

// Run recomputes the mood of every couple returned by active on each tick
// until ctx is done
func (s *MoodService) Run(ctx context.Context, active func(ctx context.Context) []*models.Couple) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	defer s.overrides.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			couples := active(ctx)
			for _, c := range couples {
				s.Recompute(ctx, c)
			}
			log.Debug().Int("couples", len(couples)).Msg("Mood tick")
		}
	}
}

func (s *MoodService) expired(coupleID string) {
	c, ok := s.store.CachedByID(coupleID)
	if !ok {
		return
	}
	s.Recompute(context.Background(), c)
}

// ConnectedCouples returns the cached couples of every user with an open socket
func ConnectedCouples(hub *WSHub, store *couplestore.Store) func(ctx context.Context) []*models.Couple {
	return func(ctx context.Context) []*models.Couple {
		seen := make(map[string]struct{})
		var couples []*models.Couple
		for _, userID := range hub.ConnectedUsers() {
			c, ok := store.Cached(ctx, userID)
			if !ok {
				continue
			}
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			couples = append(couples, c)
		}
		return couples
	}
}
