package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// EventType classifies a domain notification emitted after a webhook has
// been reconciled into the local store.
type EventType string

const (
	EventSubscriptionAdded   EventType = "subscription.added"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
	EventUserCreated         EventType = "user.created"
	EventUserUpdated         EventType = "user.updated"
	EventPaymentReceived     EventType = "payment.received"
	EventPaymentRefunded     EventType = "payment.refunded"
)

// Event is the JSON shape published to subscribers. Zero fields are omitted
// so a payment event does not carry empty subscription fields.
type Event struct {
	Type           EventType `json:"type"`
	InstallationID uint      `json:"installation_id"`
	SubscriptionID uint      `json:"subscription_id,omitempty"`
	AccessID       uint64    `json:"access_id,omitempty"`
	AmemberUserID  uint64    `json:"amember_user_id,omitempty"`
	LocalUserID    uint64    `json:"local_user_id,omitempty"`
	Email          string    `json:"email,omitempty"`
	ProductID      uint      `json:"product_id,omitempty"`
	ProductLabel   string    `json:"product_label,omitempty"`
	Tier           string    `json:"tier,omitempty"`
	Status         string    `json:"status,omitempty"`
	Timestamp      int64     `json:"timestamp"`
}

// Notifier publishes domain events. Publishing is fire and forget from the
// caller's point of view; a failed publish must never fail the webhook.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

const eventChannel = "membersync:events"

// RedisNotifier distributes events over Redis Pub/Sub so other service
// instances and consumers can react to entitlement changes.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Notify] failed to marshal %s event: %v", event.Type, err)
		return
	}

	if err := n.client.Publish(ctx, eventChannel, data).Err(); err != nil {
		log.Errorf("[Notify] failed to publish %s event: %v", event.Type, err)
		return
	}

	log.Debugf("[Notify] published %s (installation=%d)", event.Type, event.InstallationID)
}

// EventHandler is the callback invoked for each received event.
type EventHandler func(ctx context.Context, event Event)

// Subscribe blocks and delivers events published on the notification channel
// until ctx is cancelled. Malformed messages are skipped.
func (n *RedisNotifier) Subscribe(ctx context.Context, handler EventHandler) error {
	sub := n.client.Subscribe(ctx, eventChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eventChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warnf("[Notify] skipping malformed event payload: %v", err)
				continue
			}
			go handler(context.Background(), event)
		}
	}
}

// NopNotifier discards every event. Used in tests and wherever no redis
// client is available.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Event) {}
