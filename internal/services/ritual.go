package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"
	"hearth-backend/internal/notify"
	"hearth-backend/internal/streak"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxRitualAnswerRunes = 500

var ritualQuestions = []string{
	"What made you smile today?",
	"What is a small thing your partner did recently that you loved?",
	"Where would you go if you could teleport anywhere tonight?",
	"What song reminds you of us?",
	"What is one thing you are looking forward to this week?",
	"Which memory of us would you relive if you could?",
	"What is a habit of mine you secretly like?",
	"What should we cook together next?",
	"What is something new you want us to try this year?",
	"What made you feel loved this week?",
	"If our creature could talk, what would it say about us?",
	"What is your favorite way to spend a lazy Sunday together?",
}

// QuestionFor picks the ritual question for a calendar date. Both partners
// get the same question on the same day.
func QuestionFor(date string) string {
	day, err := time.Parse(streak.DateLayout, date)
	if err != nil {
		return ritualQuestions[0]
	}
	idx := int(day.Unix()/86400) % len(ritualQuestions)
	if idx < 0 {
		idx += len(ritualQuestions)
	}
	return ritualQuestions[idx]
}

// RitualView is today's ritual as seen by one partner. The partner's answer
// stays hidden until the viewer has answered.
type RitualView struct {
	ID              string  `json:"id"`
	Date            string  `json:"date"`
	Question        string  `json:"question"`
	MyAnswer        *string `json:"my_answer"`
	PartnerAnswer   *string `json:"partner_answer"`
	PartnerAnswered bool    `json:"partner_answered"`
}

func viewRitual(r *models.DailyRitual, role models.Role) *RitualView {
	v := &RitualView{
		ID:       r.ID,
		Date:     r.RitualDate,
		Question: r.Question,
		MyAnswer: r.Answer(role),
	}
	partner := r.Answer(role.Other())
	v.PartnerAnswered = partner != nil
	if v.MyAnswer != nil {
		v.PartnerAnswer = partner
	}
	return v
}

// RitualService runs the shared question of the day
type RitualService struct {
	rituals  RitualRepository
	profiles ProfileRepository
	couples  coupleWriter
	notifier notify.Notifier
	loc      *time.Location
	now      func() time.Time
}

// NewRitualService creates a new ritual service
func NewRitualService(
	rituals RitualRepository,
	profiles ProfileRepository,
	couples CoupleRepository,
	store *couplestore.Store,
	publisher Publisher,
	notifier notify.Notifier,
	loc *time.Location,
) *RitualService {
	return &RitualService{
		rituals:  rituals,
		profiles: profiles,
		couples:  coupleWriter{couples: couples, store: store, publisher: publisher},
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *RitualService) today(ctx context.Context, userID string) (*models.Couple, *models.DailyRitual, error) {
	c, err := s.couples.current(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !c.IsPaired() {
		return nil, nil, ErrNotPaired
	}

	date := streak.Today(s.now(), s.loc)
	r, err := s.rituals.GetOrCreate(ctx, &models.DailyRitual{
		ID:         uuid.New().String(),
		CoupleID:   c.ID,
		RitualDate: date,
		Question:   QuestionFor(date),
	})
	if err != nil {
		return nil, nil, networkError("load ritual", err)
	}
	return c, r, nil
}

// Today returns the ritual for the current day, creating it on first access
func (s *RitualService) Today(ctx context.Context, userID string) (*RitualView, error) {
	c, r, err := s.today(ctx, userID)
	if err != nil {
		return nil, err
	}
	return viewRitual(r, c.RoleOf(userID)), nil
}

// Answer stores the user's answer for today and tells the partner
func (s *RitualService) Answer(ctx context.Context, userID, answer string) (*RitualView, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, validationError("answer is required")
	}
	if utf8.RuneCountInString(answer) > maxRitualAnswerRunes {
		return nil, validationError("answer exceeds %d characters", maxRitualAnswerRunes)
	}

	c, r, err := s.today(ctx, userID)
	if err != nil {
		return nil, err
	}
	role := c.RoleOf(userID)
	updated, err := s.rituals.Answer(ctx, r.ID, role, answer)
	if err != nil {
		return nil, notFoundOrNetwork("answer ritual", err)
	}

	partnerID := c.PartnerOf(userID)
	publish(ctx, s.couples.publisher, partnerEvent(c, userID, WSMessage{
		Type:      MsgRitualAnswered,
		Timestamp: s.now().UnixMilli(),
		Data:      viewRitual(updated, role.Other()),
	}))
	if err := s.notifier.Notify(ctx, partnerID, notify.Notification{
		Title: "Your partner answered today's question",
		Body:  updated.Question,
		Kind:  notify.KindRitualAnswered,
		Data:  map[string]string{"couple_id": c.ID, "ritual_id": updated.ID},
	}); err != nil {
		log.Error().Err(err).Str("user_id", partnerID).Msg("Failed to notify partner about ritual answer")
	}

	log.Info().Str("user_id", userID).Str("couple_id", c.ID).Msg("Ritual answered")
	return viewRitual(updated, role), nil
}

// SendDailyReminders notifies every user with a registered device about the
// day's question. Individual failures are logged and skipped.
func (s *RitualService) SendDailyReminders(ctx context.Context) {
	userIDs, err := s.profiles.ListWithPushToken(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users for daily reminder")
		return
	}

	question := QuestionFor(streak.Today(s.now(), s.loc))
	sent := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return
		}
		if err := s.notifier.Notify(ctx, userID, notify.Notification{
			Title: "Today's question",
			Body:  question,
			Kind:  notify.KindDailyReminder,
		}); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to send daily reminder")
			continue
		}
		sent++
	}
	log.Info().Int("sent", sent).Int("users", len(userIDs)).Msg("Daily reminders sent")
}
