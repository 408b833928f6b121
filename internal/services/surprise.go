package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/mood"
	"hearth-backend/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxSurpriseNoteRunes = 200

// SurpriseService handles virtual gifts left for the partner
type SurpriseService struct {
	surprises SurpriseRepository
	couples   coupleWriter
	mood      *MoodService
	notifier  notify.Notifier
	now       func() time.Time
}

// NewSurpriseService creates a new surprise service
func NewSurpriseService(
	surprises SurpriseRepository,
	couples CoupleRepository,
	store *couplestore.Store,
	publisher Publisher,
	moods *MoodService,
	notifier notify.Notifier,
) *SurpriseService {
	return &SurpriseService{
		surprises: surprises,
		couples:   coupleWriter{couples: couples, store: store, publisher: publisher},
		mood:      moods,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Send leaves a gift for the partner
func (s *SurpriseService) Send(ctx context.Context, userID, giftType, note string) (*models.Surprise, error) {
	if !models.InCatalog(models.GiftTypes, giftType) {
		return nil, validationError("unknown gift type %q", giftType)
	}
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxSurpriseNoteRunes {
		return nil, validationError("note exceeds %d characters", maxSurpriseNoteRunes)
	}

	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.IsPaired() {
		return nil, ErrNotPaired
	}

	gift := &models.Surprise{
		ID:        uuid.New().String(),
		CoupleID:  c.ID,
		SenderID:  userID,
		GiftType:  giftType,
		Note:      note,
		CreatedAt: s.now(),
	}
	if err := s.surprises.Create(ctx, gift); err != nil {
		return nil, networkError("create surprise", err)
	}

	publish(ctx, s.couples.publisher, partnerEvent(c, userID, WSMessage{
		Type:      MsgSurprise,
		Timestamp: gift.CreatedAt.UnixMilli(),
		Data:      gift,
	}))
	s.mood.Trigger(ctx, c, mood.EventSurprise)

	partnerID := c.PartnerOf(userID)
	if err := s.notifier.Notify(ctx, partnerID, notify.Notification{
		Title: "A surprise is waiting",
		Body:  "Your partner left you a " + giftType + ".",
		Kind:  notify.KindSurprise,
		Data:  map[string]string{"couple_id": c.ID, "surprise_id": gift.ID},
	}); err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to notify partner about surprise")
	}

	log.Info().
		Str("user_id", userID).
		Str("couple_id", c.ID).
		Str("gift", giftType).
		Msg("Surprise sent")
	return gift, nil
}

// Open marks a gift addressed to the user as opened. Opening twice keeps
// the first timestamp.
func (s *SurpriseService) Open(ctx context.Context, userID, surpriseID string) (*models.Surprise, error) {
	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	gift, err := s.surprises.Open(ctx, surpriseID, c.ID, userID, s.now())
	if err != nil {
		return nil, notFoundOrNetwork("open surprise", err)
	}
	return gift, nil
}

// ListUnopened returns gifts waiting for the user
func (s *SurpriseService) ListUnopened(ctx context.Context, userID string) ([]*models.Surprise, error) {
	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	gifts, err := s.surprises.ListUnopened(ctx, c.ID, userID)
	if err != nil {
		return nil, networkError("list surprises", err)
	}
	return gifts, nil
}
