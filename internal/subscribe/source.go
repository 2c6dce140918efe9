package subscribe

import (
	"sync"

	"github.com/kapu/review-dashboard/internal/store"
)

// Source yields the store, or nil while it has not been created yet.
type Source interface {
	Store() *store.Store
}

type staticSource struct {
	s *store.Store
}

// Static wraps a store that already exists. This is the normal case: the
// composition root builds the store before mounting consumers.
func Static(s *store.Store) Source {
	return staticSource{s: s}
}

func (s staticSource) Store() *store.Store {
	return s.s
}

// Locator is a Source whose store is provided later, for consumers whose
// initialization cannot be ordered after the store's.
type Locator struct {
	mu sync.RWMutex
	s  *store.Store
}

// NewLocator returns a locator with no store yet.
func NewLocator() *Locator {
	return &Locator{}
}

// Provide publishes the store to every consumer polling this locator.
func (l *Locator) Provide(s *store.Store) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s = s
}

// Store returns the provided store, or nil before Provide.
func (l *Locator) Store() *store.Store {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.s
}

func lookup(src Source) *store.Store {
	if src == nil {
		return nil
	}
	return src.Store()
}
