// Package subscribe attaches independently mounted consumers to the store
// regardless of mount order.
//
// A consumer attached through this package catches up on values already in
// the store, subscribes to the keys it cares about and also listens on the
// completion broadcast. Both paths may deliver the same update, so every
// Consumer method must be idempotent.
package subscribe

import (
	"context"
	"sync"
	"time"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/broadcast"
	"github.com/kapu/review-dashboard/internal/store"
	"go.uber.org/zap"
)

// Defaults for locating a store that is provided after the consumer mounts.
const (
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultMaxAttempts   = 50
)

// Consumer is a widget or updater fed from the store and the broadcast.
type Consumer interface {
	// Keys lists the store keys the consumer reacts to.
	Keys() []store.Key
	// Apply sets display state from one store value.
	Apply(key store.Key, value any)
	// ApplyCompletion sets display state from a full analysis payload.
	ApplyCompletion(payload *analysis.Payload)
	// Reset returns to placeholder state after the store is cleared.
	Reset()
}

type options struct {
	interval    time.Duration
	maxAttempts int
	name        string
	logger      *zap.Logger
}

// Option configures Attach.
type Option func(*options)

// WithRetry bounds the polling used while the store has not been provided.
func WithRetry(interval time.Duration, maxAttempts int) Option {
	return func(o *options) {
		if interval > 0 {
			o.interval = interval
		}
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
	}
}

// WithLogger sets the logger for attach and delivery failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName labels log lines for the consumer.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Handle is one mounted consumer. Detach releases everything it holds.
type Handle struct {
	consumer Consumer
	keys     map[store.Key]struct{}
	opts     options

	// applyMu serializes calls into the consumer across delivery paths.
	applyMu sync.Mutex

	mu             sync.Mutex
	disposeStore   func()
	removeListener func()
	cancel         context.CancelFunc
	attached       bool
	detached       bool
	gaveUp         bool
	done           chan struct{}
}

// Attach mounts consumer against the store found through src and the
// completion bus. A nil bus disables the broadcast path.
func Attach(ctx context.Context, src Source, bus *broadcast.Bus, consumer Consumer, opts ...Option) *Handle {
	o := options{
		interval:    DefaultRetryInterval,
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	h := &Handle{
		consumer: consumer,
		keys:     make(map[store.Key]struct{}),
		opts:     o,
		done:     make(chan struct{}),
	}
	for _, k := range consumer.Keys() {
		h.keys[k] = struct{}{}
	}

	if bus != nil {
		h.removeListener = bus.Listen(h.onCompletion)
	}

	if s := lookup(src); s != nil {
		h.attach(s)
		close(h.done)
		return h
	}

	retryCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go h.poll(retryCtx, src)
	return h
}

// Attached reports whether the store subscription is live.
func (h *Handle) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attached
}

// GaveUp reports whether polling hit its cap without finding the store.
func (h *Handle) GaveUp() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gaveUp
}

// Done is closed once the handle either attached or stopped looking.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Detach disposes the store subscription, removes the broadcast listener and
// stops any pending lookup. Safe to call more than once.
func (h *Handle) Detach() {
	h.mu.Lock()
	if h.detached {
		h.mu.Unlock()
		return
	}
	h.detached = true
	h.attached = false
	disposeStore, removeListener, cancel := h.disposeStore, h.removeListener, h.cancel
	h.disposeStore, h.removeListener, h.cancel = nil, nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if disposeStore != nil {
		disposeStore()
	}
	if removeListener != nil {
		removeListener()
	}
	h.opts.logger.Debug("Consumer detached", zap.String("consumer", h.opts.name))
}

func (h *Handle) poll(ctx context.Context, src Source) {
	defer close(h.done)

	ticker := time.NewTicker(h.opts.interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= h.opts.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s := lookup(src); s != nil {
			h.opts.logger.Debug("Store located",
				zap.String("consumer", h.opts.name),
				zap.Int("attempt", attempt),
			)
			h.attach(s)
			return
		}
	}

	h.mu.Lock()
	h.gaveUp = true
	h.mu.Unlock()
	h.opts.logger.Warn("Store not available, consumer stays in waiting state",
		zap.String("consumer", h.opts.name),
		zap.Int("attempts", h.opts.maxAttempts),
	)
}

func (h *Handle) attach(s *store.Store) {
	h.applyMu.Lock()
	defer h.applyMu.Unlock()

	h.mu.Lock()
	if h.detached || h.attached {
		h.mu.Unlock()
		return
	}
	h.disposeStore = s.Subscribe(h.onStoreChange)
	h.attached = true
	h.mu.Unlock()

	// Late mount: the data may already be there with no notification coming.
	for _, k := range h.consumer.Keys() {
		if v, ok := s.GetData(k); ok {
			h.consumer.Apply(k, v)
		}
	}
}

func (h *Handle) onStoreChange(key store.Key, value any, _ map[store.Key]any) {
	if key == store.KeyClear {
		h.applyMu.Lock()
		defer h.applyMu.Unlock()
		if h.live() {
			h.consumer.Reset()
		}
		return
	}
	if _, ok := h.keys[key]; !ok {
		return
	}

	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	if h.live() {
		h.consumer.Apply(key, value)
	}
}

func (h *Handle) onCompletion(payload *analysis.Payload) {
	if payload == nil {
		return
	}
	h.applyMu.Lock()
	defer h.applyMu.Unlock()
	if h.live() {
		h.consumer.ApplyCompletion(payload)
	}
}

func (h *Handle) live() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.detached
}
