package widget

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/store"
)

const loadingForecast = "Loading forecast data..."

type ForecastView struct {
	Ready       bool
	Trend       analysis.SalesTrend
	Explanation string
}

// SalesForecast shows the predicted sales trend with a plain explanation.
type SalesForecast struct {
	mu   sync.RWMutex
	view ForecastView
}

func NewSalesForecast() *SalesForecast {
	return &SalesForecast{view: ForecastView{Explanation: loadingForecast}}
}

// Explain describes a trend for a non-technical reader.
func Explain(t analysis.SalesTrend) string {
	switch t.Trend {
	case analysis.TrendUp:
		return "Customers are mostly satisfied, so the product is likely to sell well."
	case analysis.TrendDown:
		return "Many customers are unhappy, which may reduce future sales."
	case analysis.TrendStable:
		return "Customer opinions are mixed, so sales are expected to stay the same."
	}
	if t.Message != "" {
		return t.Message
	}
	return "Analysis complete."
}

func (w *SalesForecast) Name() string { return "salesForecast" }

func (w *SalesForecast) Keys() []store.Key { return keys(store.KeySalesTrend) }

func (w *SalesForecast) Apply(_ store.Key, value any) {
	if t, ok := value.(analysis.SalesTrend); ok {
		w.set(t)
	}
}

func (w *SalesForecast) ApplyCompletion(p *analysis.Payload) {
	w.set(trendOf(p))
}

func (w *SalesForecast) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = ForecastView{Explanation: loadingForecast}
}

func (w *SalesForecast) View() ForecastView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.view
}

func (w *SalesForecast) Render() string {
	v := w.View()
	if !v.Ready {
		return card("Sales Forecast", mutedStyle.Render(v.Explanation))
	}
	trend := lipgloss.NewStyle().Bold(true).Foreground(trendColor(v.Trend.Trend)).Render(v.Trend.Trend)
	return card("Sales Forecast", trend+" - "+v.Explanation)
}

func (w *SalesForecast) set(t analysis.SalesTrend) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = ForecastView{Ready: true, Trend: t, Explanation: Explain(t)}
}

func trendColor(trend string) lipgloss.Color {
	switch trend {
	case analysis.TrendUp:
		return lipgloss.Color("#15803D")
	case analysis.TrendDown:
		return lipgloss.Color("#B91C1C")
	case analysis.TrendStable:
		return lipgloss.Color("#1D4ED8")
	default:
		return lipgloss.Color("#4B5563")
	}
}
