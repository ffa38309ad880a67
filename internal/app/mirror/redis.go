/*
Package mirror republishes relay events to a Redis pub/sub channel so that external
consumers (archivers, bots, dashboards) can follow the room without holding a
WebSocket. It is one-way: the relay never subscribes.
*/
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"chatrelay/internal/pkg/logx"
)

// Event types published on the mirror channel.
const (
	EventMessageCreated = "message:created"
	EventMessageEdited  = "message:edited"
	EventMessageDeleted = "message:deleted"
	EventPresenceJoin   = "presence:join"
	EventPresenceLeave  = "presence:leave"
	EventMOTDUpdated    = "motd:updated"
)

// Event is the JSON document published for every mirrored change.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Encode serializes an event of the given type stamped with now.
func Encode(eventType string, data any, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(Event{Type: eventType, Timestamp: now.Unix(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return payload, nil
}

// Redis publishes events to a single channel.
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis parses redisURL, verifies the connection and returns a publisher for channel.
func NewRedis(ctx context.Context, redisURL, channel string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logx.Logger().Info().Str("channel", channel).Msg("Connected to Redis event mirror")

	return &Redis{rdb: rdb, channel: channel}, nil
}

// Publish mirrors one event.
func (r *Redis) Publish(ctx context.Context, eventType string, data any) error {
	payload, err := Encode(eventType, data, time.Now())
	if err != nil {
		return err
	}

	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, r.channel, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
