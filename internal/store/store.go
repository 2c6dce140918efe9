// Package store provides the dashboard's shared analysis state.
package store

import (
	"sync"

	"github.com/kapu/review-dashboard/pkg/errors"
	"go.uber.org/zap"
)

// Key names one slot of analysis state.
type Key string

const (
	KeySentimentScore   Key = "sentimentScore"
	KeySalesTrend       Key = "salesTrend"
	KeyProductInfo      Key = "productInfo"
	KeyChartData        Key = "chartData"
	KeyCommonPhrases    Key = "commonPhrases"
	KeyAnalysisComplete Key = "analysisComplete"

	// KeyClear is reserved for the notification sent by Clear.
	KeyClear Key = "clear"
)

// Subscriber receives every write with the key, the new value and a copy of
// all data at notification time.
type Subscriber func(key Key, value any, snapshot map[Key]any)

type subscriberEntry struct {
	id       int
	callback Subscriber
}

// Store is a process-wide key/value holder with synchronous change
// notification. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	data        map[Key]any
	subscribers map[int]subscriberEntry
	nextID      int
	logger      *zap.Logger
}

// New creates an empty Store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		data:        make(map[Key]any),
		subscribers: make(map[int]subscriberEntry),
		nextID:      1,
		logger:      logger,
	}
}

// SetData overwrites key and notifies every subscriber registered when the
// call began before returning.
func (s *Store) SetData(key Key, value any) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()

	s.logger.Debug("Store: value set", zap.String("key", string(key)))
	s.notify(key, value)
}

// GetData returns the current value for key and whether it was ever set.
func (s *Store) GetData(key Key) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// GetAllData returns a shallow copy of all data.
func (s *Store) GetAllData() map[Key]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers callback and returns its disposer. Calling the
// disposer more than once is a no-op.
func (s *Store) Subscribe(callback Subscriber) func() {
	if callback == nil {
		return func() {}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = subscriberEntry{id: id, callback: callback}
	total := len(s.subscribers)
	s.mu.Unlock()

	s.logger.Debug("Store: subscriber added", zap.Int("total", total))

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			remaining := len(s.subscribers)
			s.mu.Unlock()
			s.logger.Debug("Store: subscriber removed", zap.Int("remaining", remaining))
		})
	}
}

// Clear drops every key and notifies subscribers with KeyClear and a nil
// value.
func (s *Store) Clear() {
	s.mu.Lock()
	s.data = make(map[Key]any)
	s.mu.Unlock()

	s.notify(KeyClear, nil)
}

// Len returns the number of keys currently set.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Subscribers returns the number of registered subscribers.
func (s *Store) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

func (s *Store) notify(key Key, value any) {
	s.mu.RLock()
	entries := make([]subscriberEntry, 0, len(s.subscribers))
	for _, entry := range s.subscribers {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	for _, entry := range entries {
		s.deliver(entry, key, value)
	}
}

func (s *Store) deliver(entry subscriberEntry, key Key, value any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Store: subscriber failed",
				zap.Int("subscriber", entry.id),
				zap.Error(errors.NewConsumerError(string(key), r)),
			)
		}
	}()
	entry.callback(key, value, s.GetAllData())
}

func (s *Store) snapshotLocked() map[Key]any {
	out := make(map[Key]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}
