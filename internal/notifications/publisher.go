// Package notifications delivers notification events to connected clients.
// Events are published to per-user Redis channels so every API instance can
// forward them to the websockets it holds.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"reelhub/internal/middleware"
	"reelhub/internal/models"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// EventType names what happened to a notification.
type EventType string

const (
	EventCreated   EventType = "notification_created"
	EventRetracted EventType = "notification_retracted"
)

// Event is the payload pushed to a user's channel.
type Event struct {
	Type         EventType            `json:"type"`
	Notification *models.Notification `json:"notification,omitempty"`
	// Set on retraction, identifying what the removed notifications were about.
	Kind     models.NotificationType `json:"kind,omitempty"`
	SenderID uint                    `json:"sender_id,omitempty"`
	PostID   uint                    `json:"post_id,omitempty"`
}

// Publisher publishes notification events into Redis channels.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher returns a Publisher. A nil client makes every call a no-op.
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends ev to userID's channel.
func (p *Publisher) Publish(ctx context.Context, userID uint, ev Event) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// Subscribe listens on every user channel and calls onMessage for each
// message until ctx is cancelled.
func (p *Publisher) Subscribe(ctx context.Context, onMessage func(userID uint, payload string)) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	sub := p.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	// Wait for the subscription so messages published right after
	// Subscribe returns are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
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
				userID, ok := ParseUserChannel(msg.Channel)
				if !ok {
					middleware.Logger.Warn("invalid notification channel", slog.String("channel", msg.Channel))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(userID, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel is the inverse of UserChannel.
func ParseUserChannel(channel string) (uint, bool) {
	rest, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
