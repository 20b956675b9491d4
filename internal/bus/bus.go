// Package bus carries typed session events from the engine to the relay.
package bus

import (
	"log/slog"
	"sync"
	"time"
)

const publishTimeout = 10 * time.Second

// Bus is a Go-channel based event bus with a single consumer.
type Bus struct {
	events chan Event
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// New creates a Bus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		events: make(chan Event, bufferSize),
		logger: logger,
	}
}

// Publish enqueues ev. Blocks up to 10 seconds if the bus is full, then drops.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus", "kind", ev.Kind)
		return
	}

	select {
	case b.events <- ev:
	default:
		b.logger.Warn("event bus full, waiting...", "kind", ev.Kind)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.events <- ev:
			b.logger.Info("event delivered after wait", "kind", ev.Kind)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s", "kind", ev.Kind)
		}
	}
}

// Subscribe returns the receive side of the bus. The channel is closed by Close.
func (b *Bus) Subscribe() <-chan Event {
	return b.events
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.events)
	}
}
