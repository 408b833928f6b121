// Package notify delivers push notifications to partners.
package notify

import (
	"context"
	"fmt"

	"hearth-backend/internal/config"
	"hearth-backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// Kinds of notification payloads the apps understand
const (
	KindPartnerJoined  = "partner_joined"
	KindPartnerCheckin = "partner_checkin"
	KindMessage        = "message"
	KindSurprise       = "surprise"
	KindRitualAnswered = "ritual_answered"
	KindDailyReminder  = "daily_reminder"
)

// Notification is a titled alert with a typed payload
type Notification struct {
	Title string
	Body  string
	Kind  string
	Data  map[string]string
}

// Notifier sends a notification to a user
type Notifier interface {
	Notify(ctx context.Context, userID string, n Notification) error
}

// ProfileSource resolves the push token for a user
type ProfileSource interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
}

// APNsNotifier delivers notifications through Apple Push Notification service
type APNsNotifier struct {
	client   *apns2.Client
	topic    string
	profiles ProfileSource
}

// NewAPNsNotifier creates a token-authenticated APNs notifier
func NewAPNsNotifier(cfg config.APNsConfig, profiles ProfileSource) (*APNsNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs auth key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return &APNsNotifier{
		client:   client,
		topic:    cfg.Topic,
		profiles: profiles,
	}, nil
}

// Notify pushes n to the user's registered device. Users without a push
// token are skipped.
func (a *APNsNotifier) Notify(ctx context.Context, userID string, n Notification) error {
	profile, err := a.profiles.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve push token: %w", err)
	}
	if profile.PushToken == nil || *profile.PushToken == "" {
		return nil
	}

	p := payload.NewPayload().
		AlertTitle(n.Title).
		AlertBody(n.Body).
		Sound("default").
		Custom("kind", n.Kind)
	for k, v := range n.Data {
		p.Custom(k, v)
	}

	res, err := a.client.PushWithContext(ctx, &apns2.Notification{
		DeviceToken: *profile.PushToken,
		Topic:       a.topic,
		Payload:     p,
	})
	if err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().
		Str("user_id", userID).
		Str("kind", n.Kind).
		Str("apns_id", res.ApnsID).
		Msg("Push notification sent")
	return nil
}

// LogNotifier records notifications in the log instead of delivering them
type LogNotifier struct{}

// Notify logs n
func (LogNotifier) Notify(_ context.Context, userID string, n Notification) error {
	log.Info().
		Str("user_id", userID).
		Str("kind", n.Kind).
		Str("title", n.Title).
		Msg("Notification (push disabled)")
	return nil
}
