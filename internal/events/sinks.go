package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/fossbin/propease/internal/logger"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Component("events")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, e Event) error {
	s.log.Info("Lifecycle event", logger.Fields{
		"event_id":     e.ID.String(),
		"event_type":   string(e.Type),
		"aggregate_id": e.AggregateID.String(),
		"actor_id":     e.ActorID,
		"occurred_at":  e.OccurredAt,
	})
	return nil
}

// RedisSink publishes events as JSON on a redis pub/sub channel for
// notification collaborators.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink connects to the redis server at url. The connection is
// verified with PING.
func NewRedisSink(ctx context.Context, url, channel string) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisSink{client: client, channel: channel}, nil
}

// NewRedisSinkWithClient wraps an existing client.
func NewRedisSinkWithClient(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", e.ID, err)
	}
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", e.ID, err)
	}
	return nil
}

// Close releases the redis connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
