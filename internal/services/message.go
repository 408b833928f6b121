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

const (
	maxMessageRunes     = 1000
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// MessageService handles short notes between partners
type MessageService struct {
	messages MessageRepository
	couples  coupleWriter
	mood     *MoodService
	notifier notify.Notifier
	now      func() time.Time
}

// NewMessageService creates a new message service
func NewMessageService(
	messages MessageRepository,
	couples CoupleRepository,
	store *couplestore.Store,
	publisher Publisher,
	moods *MoodService,
	notifier notify.Notifier,
) *MessageService {
	return &MessageService{
		messages: messages,
		couples:  coupleWriter{couples: couples, store: store, publisher: publisher},
		mood:     moods,
		notifier: notifier,
		now:      time.Now,
	}
}

// Send stores a message and pushes it to the partner
func (s *MessageService) Send(ctx context.Context, userID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationError("message body is required")
	}
	if utf8.RuneCountInString(body) > maxMessageRunes {
		return nil, validationError("message exceeds %d characters", maxMessageRunes)
	}

	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !c.IsPaired() {
		return nil, ErrNotPaired
	}

	m := &models.Message{
		ID:        uuid.New().String(),
		CoupleID:  c.ID,
		SenderID:  userID,
		Body:      body,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, networkError("create message", err)
	}

	publish(ctx, s.couples.publisher, partnerEvent(c, userID, WSMessage{
		Type:      MsgMessage,
		Timestamp: m.CreatedAt.UnixMilli(),
		Data:      m,
	}))
	s.mood.Trigger(ctx, c, mood.EventMessage)

	partnerID := c.PartnerOf(userID)
	if err := s.notifier.Notify(ctx, partnerID, notify.Notification{
		Title: "New note from your partner",
		Body:  preview(body),
		Kind:  notify.KindMessage,
		Data:  map[string]string{"couple_id": c.ID, "message_id": m.ID},
	}); err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to notify partner about message")
	}

	log.Info().Str("user_id", userID).Str("couple_id", c.ID).Msg("Message sent")
	return m, nil
}

// List returns up to limit messages older than before, newest first.
// A zero before means now.
func (s *MessageService) List(ctx context.Context, userID string, before time.Time, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	if before.IsZero() {
		before = s.now().Add(time.Second)
	}

	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messages.ListByCouple(ctx, c.ID, before, limit)
	if err != nil {
		return nil, networkError("list messages", err)
	}
	return messages, nil
}

func preview(body string) string {
	const n = 80
	if utf8.RuneCountInString(body) <= n {
		return body
	}
	return string([]rune(body)[:n]) + "…"
}
