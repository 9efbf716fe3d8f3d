// Package notifications fans out account and post events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"postbook/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix    = "postbook:events:"
	accountChannel   = channelPrefix + "account:"
	broadcastChannel = channelPrefix + "broadcast"
)

// Event type constants prevent typos in event names.
const (
	EventAccountCreated   = "account_created"
	EventPostCreated      = "post_created"
	EventPostUpdated      = "post_updated"
	EventPostDeleted      = "post_deleted"
	EventCountersRepaired = "counters_repaired"
)

// Event is the JSON envelope published on every channel.
type Event struct {
	Type       string         `json:"type"`
	AccountID  uint           `json:"account_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Notifier publishes committed changes into Redis channels. A Notifier
// without a client is a no-op.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events are actually published.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishAccountEvent sends an event to the account's channel and to the
// broadcast channel.
func (n *Notifier) PublishAccountEvent(ctx context.Context, accountID uint, eventType string, payload map[string]any) error {
	if !n.Enabled() {
		return nil
	}
	body, err := encode(Event{Type: eventType, AccountID: accountID, Payload: payload})
	if err != nil {
		return err
	}
	_, err = n.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Publish(ctx, AccountChannel(accountID), body)
		p.Publish(ctx, broadcastChannel, body)
		return nil
	})
	return err
}

// PublishBroadcast sends an event that is not tied to a single account.
func (n *Notifier) PublishBroadcast(ctx context.Context, eventType string, payload map[string]any) error {
	if !n.Enabled() {
		return nil
	}
	body, err := encode(Event{Type: eventType, Payload: payload})
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, broadcastChannel, body).Err()
}

func encode(ev Event) (string, error) {
	ev.OccurredAt = time.Now().UTC()
	b, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	return string(b), nil
}

// StartEventSubscriber subscribes to the given channels (the broadcast channel
// when none are given) and calls onEvent for every decodable message until ctx
// is cancelled. Malformed payloads are logged and skipped.
func (n *Notifier) StartEventSubscriber(ctx context.Context, onEvent func(channel string, ev Event), channels ...string) error {
	if !n.Enabled() {
		return nil
	}
	if len(channels) == 0 {
		channels = []string{broadcastChannel}
	}
	sub := n.rdb.Subscribe(ctx, channels...)
	// Wait for the subscription to be confirmed so publishes right after
	// this call are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", strings.Join(channels, ","), err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
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
					middleware.Logger.Warn("dropping malformed event",
						"channel", msg.Channel, "error", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in event subscriber",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onEvent(msg.Channel, ev)
				}()
			}
		}
	}()

	return nil
}

// AccountChannel derives the Redis channel name for an account.
func AccountChannel(accountID uint) string {
	return accountChannel + strconv.FormatUint(uint64(accountID), 10)
}

// BroadcastChannel is the channel every event is published to.
func BroadcastChannel() string {
	return broadcastChannel
}
