// Package events fans disposition events out to dashboard listeners.
// The Redis bus carries events across processes; the memory bus serves
// single-node deployments and tests.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
)

// Handler consumes one disposition event.
type Handler func(event domain.DispositionEvent)

// Bus couples the publish and subscribe sides of the event stream.
type Bus interface {
	domain.EventPublisher
	Subscribe(handler Handler)
}

// NewBus selects the bus implementation from the events configuration.
func NewBus(cfg domain.EventsConfig, log *logrus.Logger) (Bus, error) {
	if !cfg.Enabled || cfg.RedisURL == "" {
		return NewMemoryBus(), nil
	}
	return NewRedisBus(cfg, log)
}

// MemoryBus is an in-process bus. Publishing delivers synchronously
// to every registered handler.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewMemoryBus creates an in-process event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// PublishDisposition delivers the event to all registered handlers.
func (b *MemoryBus) PublishDisposition(ctx context.Context, event domain.DispositionEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
	return nil
}

// Subscribe registers a handler for future events.
func (b *MemoryBus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Close releases the bus. A memory bus holds no resources.
func (b *MemoryBus) Close() error {
	return nil
}
