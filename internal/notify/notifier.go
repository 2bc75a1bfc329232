// Package notify fans out real-time events to the two participants of a
// conversation. Delivery is best effort: publish failures are logged and never
// surfaced to the caller, so a dead transport cannot fail the state change
// that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is one outbound notification, addressed to a single user's channel.
type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// NewEvent builds an event with a fresh ID.
func NewEvent(eventType string, payload map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Payload: payload,
	}
}

// Notifier delivers events to a user's active sessions.
type Notifier interface {
	Publish(ctx context.Context, userID uint, event Event)
}

// UserChannel is the per-user pub/sub channel name.
func UserChannel(userID uint) string {
	return fmt.Sprintf("user:%d:events", userID)
}

// RedisNotifier publishes events as JSON on per-user Redis channels, which the
// WebSocket layer subscribes to.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

func (n *RedisNotifier) Publish(ctx context.Context, userID uint, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("marshal notification event", "type", event.Type, "err", err)
		return
	}
	if err := n.client.Publish(ctx, UserChannel(userID), body).Err(); err != nil {
		n.logger.Error("publish notification event", "type", event.Type, "user_id", userID, "err", err)
	}
}

// Recorder collects published events in memory so tests can assert on what
// would have been sent.
type Recorder struct {
	mu     sync.Mutex
	events map[uint][]Event
}

func NewRecorder() *Recorder {
	return &Recorder{events: make(map[uint][]Event)}
}

func (r *Recorder) Publish(_ context.Context, userID uint, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[userID] = append(r.events[userID], event)
}

// EventsFor returns the events published to one user, in order.
func (r *Recorder) EventsFor(userID uint) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events[userID]))
	copy(out, r.events[userID])
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(map[uint][]Event)
}
