package widget

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/chart"
	"github.com/kapu/review-dashboard/internal/store"
	"go.uber.org/zap"
)

// Surface IDs of the three analysis charts.
const (
	SentimentSurface    = "sentimentChart"
	DistributionSurface = "distributionChart"
	CountSurface        = "countChart"
)

// ChartSurfaces groups the surfaces the charts panel draws on.
type ChartSurfaces struct {
	Sentiment    chart.Surface
	Distribution chart.Surface
	Counts       chart.Surface
}

// Charts owns one chart manager per series of chart data.
type Charts struct {
	sentiment    *chart.Manager
	distribution *chart.Manager
	counts       *chart.Manager
	draw         func(chart.Surface) string
}

// NewCharts binds managers to surfaces. draw reads back a surface for
// Render and may be nil.
func NewCharts(surfaces ChartSurfaces, library chart.Library, draw func(chart.Surface) string, logger *zap.Logger) *Charts {
	return &Charts{
		sentiment: chart.NewManager(surfaces.Sentiment, library, chart.Spec{
			Kind:   chart.KindBar,
			Title:  "Sentiment Scores",
			Colors: []string{"#10B981", "#EF4444", "#6B7280"},
		}, logger),
		distribution: chart.NewManager(surfaces.Distribution, library, chart.Spec{
			Kind:   chart.KindDoughnut,
			Title:  "Sentiment Distribution",
			Colors: []string{"#10B981", "#6B7280", "#EF4444"},
		}, logger),
		counts: chart.NewManager(surfaces.Counts, library, chart.Spec{
			Kind:   chart.KindBar,
			Title:  "Review Count",
			Colors: []string{"#3B82F6"},
		}, logger),
		draw: draw,
	}
}

func (w *Charts) Name() string { return "charts" }

func (w *Charts) Keys() []store.Key { return keys(store.KeyChartData) }

func (w *Charts) Apply(_ store.Key, value any) {
	if data, ok := value.(analysis.ChartData); ok {
		w.update(data)
	}
}

func (w *Charts) ApplyCompletion(p *analysis.Payload) {
	w.update(chartsOf(p))
}

func (w *Charts) Reset() {
	for _, m := range w.Managers() {
		m.Clear()
	}
}

// Close disposes every chart instance. The panel does not render afterwards.
func (w *Charts) Close() {
	for _, m := range w.Managers() {
		m.Dispose()
	}
}

// Managers returns the sentiment, distribution and count managers.
func (w *Charts) Managers() []*chart.Manager {
	return []*chart.Manager{w.sentiment, w.distribution, w.counts}
}

func (w *Charts) Render() string {
	parts := make([]string, 0, 3)
	for _, m := range w.Managers() {
		if !m.Live() || w.draw == nil {
			continue
		}
		parts = append(parts, w.draw(m.Surface()))
	}
	if len(parts) == 0 {
		return card("Charts", mutedStyle.Render(WaitingText))
	}
	return card("Charts", lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// update mirrors data onto the managers. A series absent from data clears its
// surface so no chart from an earlier run stays drawn.
func (w *Charts) update(data analysis.ChartData) {
	show(w.sentiment, data.Sentiment)
	show(w.distribution, data.Distribution)
	show(w.counts, data.Counts)
}

func show(m *chart.Manager, series *analysis.Series) {
	if series == nil {
		m.Clear()
		return
	}
	m.Update(series)
}
