// Package chart owns the rendering-library instances bound to chart surfaces.
package chart

import (
	"fmt"
	"sync"

	"github.com/kapu/review-dashboard/internal/analysis"
	"go.uber.org/zap"
)

type Kind string

const (
	KindBar      Kind = "bar"
	KindDoughnut Kind = "doughnut"
)

// Spec is everything a renderer needs to draw one chart.
type Spec struct {
	Kind   Kind
	Title  string
	Labels []string
	Values []float64
	Colors []string
}

// Surface is an addressable rendering target.
type Surface interface {
	ID() string
}

// Instance is a live chart created by a Renderer. Destroy releases it.
type Instance interface {
	Destroy()
}

// Renderer is the charting library.
type Renderer interface {
	Create(surface Surface, spec Spec) (Instance, error)
}

// Library returns the renderer, or nil while the charting library is not
// loaded.
type Library func() Renderer

// Loaded wraps a renderer that is always available.
func Loaded(r Renderer) Library {
	return func() Renderer { return r }
}

type State int

const (
	StateEmpty State = iota
	StateRendered
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "EMPTY"
	case StateRendered:
		return "RENDERED"
	case StateDisposed:
		return "DISPOSED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Manager keeps at most one live instance on its surface, consistent with
// the latest series it was given. A new series reference always replaces
// the instance: the old one is destroyed before the new one is created.
type Manager struct {
	mu       sync.Mutex
	surface  Surface
	library  Library
	template Spec
	instance Instance
	current  *analysis.Series
	state    State
	created  int
	logger   *zap.Logger
}

// NewManager binds a manager to surface. template supplies kind, title and
// colors; labels and values come from each update.
func NewManager(surface Surface, library Library, template Spec, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		surface:  surface,
		library:  library,
		template: template,
		state:    StateEmpty,
		logger:   logger,
	}
}

// Update renders series. Passing the same reference again is a no-op.
func (m *Manager) Update(series *analysis.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDisposed || series == nil || series == m.current {
		return
	}

	renderer := m.renderer()
	if renderer == nil {
		m.logger.Debug("Chart library not loaded, surface left empty",
			zap.String("surface", m.surface.ID()),
		)
		return
	}

	m.destroyLocked()

	spec := m.template
	spec.Labels = append([]string(nil), series.Labels...)
	spec.Values = append([]float64(nil), series.Points()...)

	inst, err := m.create(renderer, spec)
	if err != nil {
		m.logger.Error("Failed to create chart",
			zap.String("surface", m.surface.ID()),
			zap.Error(err),
		)
		return
	}

	m.instance = inst
	m.current = series
	m.state = StateRendered
	m.created++
	m.logger.Debug("Chart rendered",
		zap.String("surface", m.surface.ID()),
		zap.Int("points", len(spec.Values)),
	)
}

// Clear destroys the live instance and returns the surface to Empty. The next
// update renders again.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisposed {
		return
	}
	m.destroyLocked()
}

// Dispose destroys the live instance. The manager ignores updates afterwards.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisposed {
		return
	}
	m.destroyLocked()
	m.state = StateDisposed
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Live reports whether an instance currently exists.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instance != nil
}

// Created counts instances constructed over the manager's lifetime.
func (m *Manager) Created() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created
}

func (m *Manager) Surface() Surface {
	return m.surface
}

func (m *Manager) renderer() (r Renderer) {
	if m.library == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
		}
	}()
	return m.library()
}

func (m *Manager) create(renderer Renderer, spec Spec) (inst Instance, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			inst, err = nil, fmt.Errorf("renderer panicked: %v", rec)
		}
	}()
	return renderer.Create(m.surface, spec)
}

func (m *Manager) destroyLocked() {
	if m.instance == nil {
		return
	}
	inst := m.instance
	m.instance = nil
	m.current = nil
	m.state = StateEmpty
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				m.logger.Warn("Chart destroy failed",
					zap.String("surface", m.surface.ID()),
					zap.Any("panic", rec),
				)
			}
		}()
		inst.Destroy()
	}()
}
