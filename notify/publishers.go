package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the redis channel used when none is configured
const DefaultChannel = "planning:events"

// LogPublisher writes notifications to a structured logger
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, n Notification) error {
	p.logger.InfoContext(ctx, "notification",
		"kind", n.Kind,
		"event_id", n.EventID,
		"series_id", n.SeriesID,
		"previous_series_id", n.PreviousSeriesID,
		"actor_id", n.ActorID)
	return nil
}

// redisPublisherClient is the part of *redis.Client the publisher needs
type redisPublisherClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON encoded notifications on a redis channel
type RedisPublisher struct {
	client  redisPublisherClient
	channel string
}

// NewRedisPublisher connects lazily to the server described by opt
func NewRedisPublisher(opt *redis.Options, channel string) *RedisPublisher {
	return newRedisPublisher(redis.NewClient(opt), channel)
}

func newRedisPublisher(client redisPublisherClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := n.Encode()
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Close releases the underlying client when it owns one
func (p *RedisPublisher) Close() error {
	if c, ok := p.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
