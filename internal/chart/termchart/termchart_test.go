package termchart

import (
	"testing"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/chart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type otherSurface struct{}

func (otherSurface) ID() string { return "other" }

func TestCreateDrawsOnCanvas(t *testing.T) {
	canvas := NewCanvas("sentimentChart")
	inst, err := New().Create(canvas, chart.Spec{
		Kind:   chart.KindBar,
		Title:  "Sentiment Scores",
		Labels: []string{"Positive", "Negative"},
		Values: []float64{0.8, 0.2},
	})
	require.NoError(t, err)

	out := canvas.Content()
	assert.Contains(t, out, "Sentiment Scores")
	assert.Contains(t, out, "Positive")
	assert.Contains(t, out, "0.800")

	inst.Destroy()
	inst.Destroy()
	assert.Empty(t, canvas.Content())
}

func TestStaleDestroyKeepsNewerDrawing(t *testing.T) {
	canvas := NewCanvas("countChart")
	r := New()
	old, err := r.Create(canvas, chart.Spec{Labels: []string{"Total Reviews"}, Values: []float64{3}})
	require.NoError(t, err)
	_, err = r.Create(canvas, chart.Spec{Labels: []string{"Total Reviews"}, Values: []float64{7}})
	require.NoError(t, err)

	old.Destroy()
	assert.Contains(t, canvas.Content(), "7")
}

func TestDoughnutShowsShares(t *testing.T) {
	out := Render(chart.Spec{
		Kind:   chart.KindDoughnut,
		Labels: []string{"Positive", "Neutral", "Negative"},
		Values: []float64{2, 1, 1},
	})
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "25.0%")
}

func TestCreateRejectsMismatchedSpec(t *testing.T) {
	_, err := New().Create(NewCanvas("x"), chart.Spec{Labels: []string{"a"}, Values: []float64{1, 2}})
	assert.Error(t, err)

	_, err = New().Create(otherSurface{}, chart.Spec{})
	assert.Error(t, err)
}

func TestManagerReplacesCanvasContent(t *testing.T) {
	canvas := NewCanvas("distributionChart")
	m := chart.NewManager(canvas, chart.Loaded(New()), chart.Spec{Kind: chart.KindDoughnut}, zap.NewNop())

	m.Update(&analysis.Series{Labels: []string{"Positive", "Negative"}, Values: []float64{1, 1}})
	assert.Contains(t, canvas.Content(), "50.0%")

	m.Update(&analysis.Series{Labels: []string{"Positive", "Neutral", "Negative"}, Values: []float64{1, 1, 2}})
	assert.Contains(t, canvas.Content(), "Neutral")

	m.Dispose()
	assert.Empty(t, canvas.Content())
}
