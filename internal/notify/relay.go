package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/assessment-results-server/internal/domain"
)

// DefaultRelayChannel is the Redis pub/sub channel notifications travel on.
const DefaultRelayChannel = "results:notifications"

// RedisRelay broadcasts notifications to every instance subscribed to the same channel.
type RedisRelay struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	logger  *logrus.Logger
}

// NewRedisRelay connects to the Redis server at url.
func NewRedisRelay(ctx context.Context, url, channel string, logger *logrus.Logger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{client: client, channel: channel, logger: logger}, nil
}

// Publish sends n to every subscribed instance.
func (r *RedisRelay) Publish(ctx context.Context, n *domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Subscribe starts a goroutine feeding received notifications to deliver.
func (r *RedisRelay) Subscribe(ctx context.Context, deliver func(*domain.Notification)) error {
	r.pubsub = r.client.Subscribe(ctx, r.channel)
	if _, err := r.pubsub.Receive(ctx); err != nil {
		r.pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	go func() {
		for msg := range r.pubsub.Channel() {
			var n domain.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				r.logger.WithError(err).Error("Relay message unmarshal error")
				continue
			}
			deliver(&n)
		}
	}()
	return nil
}

// Close ends the subscription and the connection.
func (r *RedisRelay) Close() error {
	if r.pubsub != nil {
		r.pubsub.Close()
	}
	return r.client.Close()
}
