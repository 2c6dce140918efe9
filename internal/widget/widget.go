// Package widget holds the dashboard's presentational consumers. Each widget
// keeps its own display state, derived only from store values or the
// completion payload, and every update overwrites that state.
package widget

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/store"
	"github.com/kapu/review-dashboard/internal/subscribe"
)

// Widget is a consumer that can draw itself.
type Widget interface {
	subscribe.Consumer
	Name() string
	Render() string
}

// WaitingText is shown by widgets that have no data yet.
const WaitingText = "Waiting for analysis..."

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1F2937"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func card(title, body string) string {
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, headingStyle.Render(title), body))
}

// The helpers below turn a completion payload into the same values the
// bridge stores, so both delivery paths produce identical display state.

func scoreOf(p *analysis.Payload) float64 {
	if p.SentimentScore == nil {
		return 0
	}
	return *p.SentimentScore
}

func trendOf(p *analysis.Payload) analysis.SalesTrend {
	if p.SalesTrend == nil {
		return analysis.DefaultSalesTrend()
	}
	return *p.SalesTrend
}

func productOf(p *analysis.Payload) analysis.ProductInfo {
	if p.ProductInfo == nil {
		return analysis.ProductInfo{}.WithDefaults()
	}
	return p.ProductInfo.WithDefaults()
}

func chartsOf(p *analysis.Payload) analysis.ChartData {
	if p.ChartData == nil {
		return analysis.ChartData{}
	}
	return *p.ChartData
}

func phrasesOf(p *analysis.Payload) []analysis.Phrase {
	return append([]analysis.Phrase{}, p.CommonPhrases...)
}

func keys(k ...store.Key) []store.Key {
	return k
}
