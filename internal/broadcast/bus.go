// Package broadcast carries the "analysis completed" signal to every
// listener in the process.
//
// Delivery is at-least-once: a publisher may fire the same payload several
// times so listeners that attach slightly late still observe it. Listeners
// must treat the payload as an overwrite of their state, never accumulate it.
// Do not collapse this into exactly-once delivery; the repeat covers the
// window between a consumer mounting and its store subscription going live.
package broadcast

import (
	"sync"
	"time"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/pkg/errors"
	"go.uber.org/zap"
)

// EventAnalysisCompleted names the only event this bus carries.
const EventAnalysisCompleted = "analysisCompleted"

// Listener receives the full, immutable analysis payload.
type Listener func(payload *analysis.Payload)

type listenerEntry struct {
	id       int
	callback Listener
}

// Bus fans the completion payload out to listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners []listenerEntry
	nextID    int
	timers    map[*time.Timer]struct{}
	closed    bool
	logger    *zap.Logger

	// held for the whole of a redelivery so CancelPending returns only once
	// no stale payload is still being delivered
	redeliverMu sync.Mutex
}

// NewBus creates an empty bus. A nil logger discards output.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		listeners: make([]listenerEntry, 0),
		nextID:    1,
		timers:    make(map[*time.Timer]struct{}),
		logger:    logger,
	}
}

// Listen registers callback and returns a function removing it.
func (b *Bus) Listen(callback Listener) func() {
	if callback == nil {
		return func() {}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners = append(b.listeners, listenerEntry{id: id, callback: callback})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, entry := range b.listeners {
			if entry.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers payload once to every current listener.
func (b *Bus) Publish(payload *analysis.Payload) {
	b.mu.RLock()
	listeners := make([]listenerEntry, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	b.logger.Debug("Broadcast: dispatching",
		zap.String("event", EventAnalysisCompleted),
		zap.Int("listeners", len(listeners)),
	)

	for _, entry := range listeners {
		b.deliver(entry, payload)
	}
}

// PublishAtLeastOnce delivers payload now and again after delay. A
// non-positive delay publishes once. Redeliveries still pending from an
// earlier publish are dropped first, so a stale payload never lands after a
// newer one.
func (b *Bus) PublishAtLeastOnce(payload *analysis.Payload, delay time.Duration) {
	b.CancelPending()
	b.Publish(payload)
	if delay <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		b.redeliverMu.Lock()
		defer b.redeliverMu.Unlock()

		b.mu.Lock()
		_, pending := b.timers[timer]
		delete(b.timers, timer)
		b.mu.Unlock()
		if pending {
			b.Publish(payload)
		}
	})
	b.timers[timer] = struct{}{}
}

// CancelPending stops every scheduled redelivery. Listeners stay registered.
func (b *Bus) CancelPending() {
	b.redeliverMu.Lock()
	defer b.redeliverMu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimersLocked()
}

// Listeners returns the number of registered listeners.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close cancels pending redeliveries and drops all listeners.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.stopTimersLocked()
	b.listeners = make([]listenerEntry, 0)
}

func (b *Bus) stopTimersLocked() {
	if len(b.timers) > 0 {
		b.logger.Debug("Broadcast: dropping pending redeliveries", zap.Int("pending", len(b.timers)))
	}
	for timer := range b.timers {
		timer.Stop()
	}
	b.timers = make(map[*time.Timer]struct{})
}

func (b *Bus) deliver(entry listenerEntry, payload *analysis.Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Broadcast: listener failed",
				zap.Int("listener", entry.id),
				zap.Error(errors.NewConsumerError(EventAnalysisCompleted, r)),
			)
		}
	}()
	entry.callback(payload)
}
