package services

import (
	"context"
	"time"

	"hearth-backend/internal/models"
	"hearth-backend/internal/notify"
	"hearth-backend/internal/streak"

	"github.com/rs/zerolog/log"
)

// CheckinService records daily presence and derives the couple streak
type CheckinService struct {
	checkins  CheckinRepository
	publisher Publisher
	notifier  notify.Notifier
	loc       *time.Location
	now       func() time.Time
}

// NewCheckinService creates a new check-in service
func NewCheckinService(checkins CheckinRepository, publisher Publisher, notifier notify.Notifier, loc *time.Location) *CheckinService {
	return &CheckinService{
		checkins:  checkins,
		publisher: publisher,
		notifier:  notifier,
		loc:       loc,
		now:       time.Now,
	}
}

// Record upserts today's check-in for the user. The partner is told only
// about the first check-in of the day.
func (s *CheckinService) Record(ctx context.Context, c *models.Couple, userID string) (bool, error) {
	checkin := models.DailyCheckin{
		CoupleID:    c.ID,
		UserID:      userID,
		CheckinDate: streak.Today(s.now(), s.loc),
	}
	inserted, err := s.checkins.Upsert(ctx, checkin)
	if err != nil {
		return false, networkError("record check-in", err)
	}
	if !inserted {
		return false, nil
	}

	log.Info().
		Str("user_id", userID).
		Str("couple_id", c.ID).
		Str("date", checkin.CheckinDate).
		Msg("Daily check-in recorded")

	partnerID := c.PartnerOf(userID)
	if partnerID == "" {
		return true, nil
	}
	publish(ctx, s.publisher, partnerEvent(c, userID, WSMessage{
		Type:      MsgPartnerCheckin,
		Timestamp: s.now().UnixMilli(),
		Data:      checkin,
	}))
	if err := s.notifier.Notify(ctx, partnerID, notify.Notification{
		Title: "Your partner stopped by",
		Body:  "Your creature is happy to see you both today.",
		Kind:  notify.KindPartnerCheckin,
		Data:  map[string]string{"couple_id": c.ID},
	}); err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to notify partner about check-in")
	}
	return true, nil
}

// Streak returns the number of distinct days either partner checked in
func (s *CheckinService) Streak(ctx context.Context, coupleID string) (int, error) {
	checkins, err := s.checkins.ListByCouple(ctx, coupleID)
	if err != nil {
		return 0, networkError("list check-ins", err)
	}
	return streak.Count(checkins), nil
}
