// Package termchart is a chart renderer that draws into in-memory canvases
// as lipgloss-styled terminal text.
package termchart

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/kapu/review-dashboard/internal/chart"
)

const barWidth = 30

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Width(16)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Canvas is a drawable surface holding the last rendered text.
type Canvas struct {
	id      string
	mu      sync.Mutex
	content string
	owner   *instance
}

func NewCanvas(id string) *Canvas {
	return &Canvas{id: id}
}

func (c *Canvas) ID() string {
	return c.id
}

// Content returns what is currently drawn, or "" when empty.
func (c *Canvas) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

func (c *Canvas) draw(owner *instance, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = owner
	c.content = content
}

func (c *Canvas) release(owner *instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == owner {
		c.owner = nil
		c.content = ""
	}
}

type instance struct {
	canvas *Canvas
	once   sync.Once
}

func (i *instance) Destroy() {
	i.once.Do(func() {
		i.canvas.release(i)
	})
}

// Renderer draws bar and doughnut charts onto Canvas surfaces.
type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Create(surface chart.Surface, spec chart.Spec) (chart.Instance, error) {
	canvas, ok := surface.(*Canvas)
	if !ok {
		return nil, fmt.Errorf("termchart: unsupported surface %T", surface)
	}
	if len(spec.Labels) != len(spec.Values) {
		return nil, fmt.Errorf("termchart: %d labels for %d values", len(spec.Labels), len(spec.Values))
	}

	inst := &instance{canvas: canvas}
	canvas.draw(inst, Render(spec))
	return inst, nil
}

// Render draws spec as text.
func Render(spec chart.Spec) string {
	var b strings.Builder
	if spec.Title != "" {
		b.WriteString(titleStyle.Render(spec.Title))
		b.WriteByte('\n')
	}
	if len(spec.Values) == 0 {
		b.WriteString(mutedStyle.Render("no data"))
		return b.String()
	}

	switch spec.Kind {
	case chart.KindDoughnut:
		writeShares(&b, spec)
	default:
		writeBars(&b, spec)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeBars(b *strings.Builder, spec chart.Spec) {
	maxAbs := 0.0
	for _, v := range spec.Values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	for i, v := range spec.Values {
		n := 0
		if maxAbs > 0 {
			n = int(math.Round(math.Abs(v) / maxAbs * barWidth))
		}
		bar := colorFor(spec, i).Render(strings.Repeat("█", n))
		fmt.Fprintf(b, "%s %s %s\n", labelStyle.Render(spec.Labels[i]), bar, formatValue(v))
	}
}

func writeShares(b *strings.Builder, spec chart.Spec) {
	total := 0.0
	for _, v := range spec.Values {
		total += math.Abs(v)
	}
	for i, v := range spec.Values {
		share := 0.0
		if total > 0 {
			share = math.Abs(v) / total
		}
		n := int(math.Round(share * barWidth))
		bar := colorFor(spec, i).Render(strings.Repeat("▓", n))
		fmt.Fprintf(b, "%s %s %5.1f%%\n", labelStyle.Render(spec.Labels[i]), bar, share*100)
	}
}

func colorFor(spec chart.Spec, i int) lipgloss.Style {
	if len(spec.Colors) == 0 {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(spec.Colors[i%len(spec.Colors)]))
}

func formatValue(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.3f", v)
}
