package services

import (
	"context"
	"encoding/json"
	"fmt"

	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Event is a realtime update for the members of a couple. Couple carries the
// new server record when the update changed the couple row.
type Event struct {
	CoupleID   string         `json:"couple_id"`
	Recipients []string       `json:"recipients"`
	Message    WSMessage      `json:"message"`
	Couple     *models.Couple `json:"couple,omitempty"`
}

// Publisher fans events out to every instance holding a recipient's socket
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Deliverer applies an event on this instance: it merges the couple record
// into the store and forwards the message to connected recipients.
type Deliverer struct {
	store *couplestore.Store
	hub   *WSHub
}

// NewDeliverer creates a local event sink
func NewDeliverer(store *couplestore.Store, hub *WSHub) *Deliverer {
	return &Deliverer{store: store, hub: hub}
}

// Deliver handles one event
func (d *Deliverer) Deliver(ctx context.Context, ev Event) {
	if ev.Couple != nil {
		d.store.ApplyRemote(ctx, ev.Couple)
	}
	d.hub.Deliver(ev)
}

// LocalPublisher delivers events in process, for single-instance deployments
type LocalPublisher struct {
	deliverer *Deliverer
}

// NewLocalPublisher creates an in-process publisher
func NewLocalPublisher(d *Deliverer) *LocalPublisher {
	return &LocalPublisher{deliverer: d}
}

// Publish delivers ev immediately
func (p *LocalPublisher) Publish(ctx context.Context, ev Event) error {
	p.deliverer.Deliver(ctx, ev)
	return nil
}

// RedisPublisher fans events out through Redis pub/sub, one channel per couple
type RedisPublisher struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisPublisher creates a Redis-backed publisher
func NewRedisPublisher(client *redis.Client, keyPrefix string) *RedisPublisher {
	if keyPrefix == "" {
		keyPrefix = "hearth:"
	}
	return &RedisPublisher{client: client, keyPrefix: keyPrefix}
}

func (p *RedisPublisher) channel(coupleID string) string {
	return fmt.Sprintf("%scouple:%s:events", p.keyPrefix, coupleID)
}

// Publish sends ev to every subscribed instance
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel(ev.CoupleID), payload).Err(); err != nil {
		return fmt.Errorf("redis: failed to publish event for couple %s: %w", ev.CoupleID, err)
	}
	return nil
}

// Run subscribes to every couple channel and hands events to d until ctx is done
func (p *RedisPublisher) Run(ctx context.Context, d *Deliverer) error {
	pubsub := p.client.PSubscribe(ctx, p.channel("*"))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis: failed to subscribe to couple events: %w", err)
	}
	log.Info().Str("pattern", p.channel("*")).Msg("Subscribed to couple events")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Error().Err(err).Str("channel", msg.Channel).Msg("Failed to decode couple event")
				continue
			}
			d.Deliver(ctx, ev)
		}
	}
}

func publish(ctx context.Context, p Publisher, ev Event) {
	if err := p.Publish(ctx, ev); err != nil {
		log.Error().
			Err(err).
			Str("couple_id", ev.CoupleID).
			Str("type", ev.Message.Type).
			Msg("Failed to publish realtime event")
	}
}

func coupleEvent(c *models.Couple, msgType string) Event {
	return Event{
		CoupleID:   c.ID,
		Recipients: c.Members(),
		Message:    WSMessage{Type: msgType, Data: c},
		Couple:     c,
	}
}

func partnerEvent(c *models.Couple, senderID string, msg WSMessage) Event {
	var recipients []string
	if partner := c.PartnerOf(senderID); partner != "" {
		recipients = []string{partner}
	}
	return Event{CoupleID: c.ID, Recipients: recipients, Message: msg}
}
