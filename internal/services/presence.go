package services

import (
	"context"
	"time"

	"hearth-backend/internal/config"
	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Presence is a partner's derived online status
type Presence struct {
	UserID       string     `json:"user_id"`
	DisplayName  string     `json:"display_name"`
	Online       bool       `json:"online"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// IsOnline reports whether a heartbeat at lastActive is recent enough at now.
// A user that never sent a heartbeat is offline.
func IsOnline(lastActive *time.Time, now time.Time, threshold time.Duration) bool {
	if lastActive == nil {
		return false
	}
	return now.Sub(*lastActive) < threshold
}

// PresenceService records heartbeats and derives partner presence from them.
// Stored presence has no offline signal; a user reads as offline once
// heartbeats stop. Flips seen by this instance are also pushed to the partner.
type PresenceService struct {
	profiles  ProfileRepository
	store     *couplestore.Store
	publisher Publisher
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
}

// NewPresenceService creates a new presence service
func NewPresenceService(profiles ProfileRepository, store *couplestore.Store, publisher Publisher, cfg config.PresenceConfig) *PresenceService {
	return &PresenceService{
		profiles:  profiles,
		store:     store,
		publisher: publisher,
		interval:  cfg.HeartbeatInterval,
		threshold: cfg.OnlineThreshold,
		now:       time.Now,
	}
}

// Heartbeat stamps the user's last activity
func (s *PresenceService) Heartbeat(ctx context.Context, userID string) error {
	if err := s.profiles.Touch(ctx, userID, s.now()); err != nil {
		return networkError("heartbeat", err)
	}
	return nil
}

// RunHeartbeat sends a heartbeat now and then on every interval until ctx is
// done. onTick runs after each attempt, failed or not. Failures are logged and
// retried on the next tick. The partner is told the user is online on the
// first success and again after any failure.
func (s *PresenceService) RunHeartbeat(ctx context.Context, userID string, onTick func(ctx context.Context)) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	announced := false
	for {
		err := s.Heartbeat(ctx, userID)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil:
			log.Warn().Err(err).Str("user_id", userID).Msg("Heartbeat failed")
			announced = false
		case !announced:
			s.Announce(ctx, userID, true)
			announced = true
		}
		if onTick != nil {
			onTick(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PartnerPresence returns the presence of the user's partner in c
func (s *PresenceService) PartnerPresence(ctx context.Context, c *models.Couple, userID string) (*Presence, error) {
	partnerID := c.PartnerOf(userID)
	if partnerID == "" {
		return nil, ErrNotPaired
	}
	p, err := s.profiles.GetByID(ctx, partnerID)
	if err != nil {
		return nil, notFoundOrNetwork("load partner profile", err)
	}
	return &Presence{
		UserID:       p.ID,
		DisplayName:  p.DisplayName,
		Online:       IsOnline(p.LastActiveAt, s.now(), s.threshold),
		LastActiveAt: p.LastActiveAt,
	}, nil
}

// Announce pushes the user's online flag to their partner
func (s *PresenceService) Announce(ctx context.Context, userID string, online bool) {
	c, ok := s.store.Cached(ctx, userID)
	if !ok {
		var err error
		if c, err = s.store.Refresh(ctx, userID); err != nil || c == nil {
			return
		}
	}
	if !c.IsPaired() {
		return
	}

	p := Presence{UserID: userID, Online: online}
	if online {
		now := s.now()
		p.LastActiveAt = &now
	}
	publish(ctx, s.publisher, partnerEvent(c, userID, WSMessage{
		Type:   MsgPartnerStatus,
		Online: &online,
		Data:   p,
	}))
}
