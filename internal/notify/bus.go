package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is the payload fanned out to a user's live stream. It mirrors the
// stored notification row so SSE clients need no follow-up fetch.
type Event struct {
	ID        int64           `json:"id"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title"`
	Body      string          `json:"body,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Bus fans notification events out to per-user channels over Redis pub/sub
// so every API replica sees publishes from its peers.
type Bus struct {
	client *redis.Client
}

// NewBus wraps a Redis client.
func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

func userChannel(userID int64) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

// Publish sends an event to one user's channel. Missing subscribers are
// fine; the stored notification row is the durable copy.
func (b *Bus) Publish(ctx context.Context, userID int64, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, userChannel(userID), payload).Err()
}

// Subscription is one user's live feed. Close it when the client hangs up.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
}

// Events yields decoded events until the subscription is closed.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close tears down the underlying pub/sub connection.
func (s *Subscription) Close() error { return s.pubsub.Close() }

// Subscribe opens a live feed for a user. Events that fail to decode are
// dropped; the channel closes when ctx ends or Close is called.
func (b *Bus) Subscribe(ctx context.Context, userID int64) (*Subscription, error) {
	pubsub := b.client.Subscribe(ctx, userChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &Subscription{pubsub: pubsub, events: make(chan Event, 16)}
	go func() {
		defer close(sub.events)
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case sub.events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return sub, nil
}
