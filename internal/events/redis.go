package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// RedisBus publishes disposition events on a Redis channel so every
// server instance sees events raised by its peers.
type RedisBus struct {
	client  *redis.Client
	channel string
	log     *logrus.Logger

	mu       sync.RWMutex
	handlers []Handler
	pubsub   *redis.PubSub
}

// NewRedisBus connects to Redis and prepares the event channel.
func NewRedisBus(cfg domain.EventsConfig, log *logrus.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrCacheConnection, err)
	}

	return &RedisBus{
		client:  client,
		channel: cfg.Channel,
		log:     log,
	}, nil
}

// PublishDisposition marshals the event and publishes it on the
// configured channel.
func (b *RedisBus) PublishDisposition(ctx context.Context, event domain.DispositionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe registers a handler. The Redis subscription starts with
// the first handler and is shared by all of them.
func (b *RedisBus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = append(b.handlers, handler)
	if b.pubsub == nil {
		b.pubsub = b.client.Subscribe(context.Background(), b.channel)
		go b.listen()
	}
}

// listen drains the subscription channel until the bus is closed.
func (b *RedisBus) listen() {
	ch := b.pubsub.Channel()
	for msg := range ch {
		var event domain.DispositionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.log.WithFields(logrus.Fields{
				"channel": msg.Channel,
				"error":   err.Error(),
			}).Warn("Discarding malformed disposition event")
			continue
		}

		b.mu.RLock()
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.mu.RUnlock()

		for _, handler := range handlers {
			handler(event)
		}
	}
}

// Close stops the subscription and releases the Redis connection.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		if err := b.pubsub.Close(); err != nil {
			b.log.WithError(err).Warn("Failed to close event subscription")
		}
		b.pubsub = nil
	}
	return b.client.Close()
}
