package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/api"
	"github.com/kapu/review-dashboard/internal/broadcast"
	"github.com/kapu/review-dashboard/internal/chart"
	"github.com/kapu/review-dashboard/internal/store"
	"github.com/kapu/review-dashboard/internal/upload"
	"github.com/kapu/review-dashboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const scenarioBody = `{
	"success": true,
	"sentiment_score": 0.42,
	"sales_trend": {"trend": "Up", "avg_sentiment": 0.42, "message": "Great"},
	"product_info": {"Product Name": "Phone X", "Brand Name": "Acme", "Price": 199.99},
	"chart_data": {"sentiment": {"labels": ["Positive", "Negative"], "means": [0.8, 0.2]}},
	"common_phrases": [["great value", 12], ["fast shipping", 9]]
}`

type fakeControl struct {
	mu       sync.Mutex
	content  string
	disabled bool
	history  []string
}

func (c *fakeControl) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

func (c *fakeControl) SetContent(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = content
	c.history = append(c.history, content)
}

func (c *fakeControl) SetDisabled(disabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = disabled
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (n *fakeNotifier) Alert(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, message)
}

type uploaderFunc func(ctx context.Context, sel *upload.Selection) (*analysis.Payload, error)

func (f uploaderFunc) Upload(ctx context.Context, sel *upload.Selection) (*analysis.Payload, error) {
	return f(ctx, sel)
}

func staticUploader(body string) Uploader {
	return uploaderFunc(func(context.Context, *upload.Selection) (*analysis.Payload, error) {
		return analysis.Decode([]byte(body))
	})
}

func serverUploader(t *testing.T, status int, body string) Uploader {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return api.NewClient(srv.URL, 5*time.Second, zap.NewNop())
}

type recordingRenderer struct {
	specs []chart.Spec
}

type nopInstance struct{}

func (nopInstance) Destroy() {}

func (r *recordingRenderer) Create(_ chart.Surface, spec chart.Spec) (chart.Instance, error) {
	r.specs = append(r.specs, spec)
	return nopInstance{}, nil
}

type surface string

func (s surface) ID() string { return string(s) }

func selection() *upload.Selection {
	return upload.FromBytes("reviews.csv", []byte("Reviews\ngreat value\n"))
}

func TestAnalyzeScenario(t *testing.T) {
	s := store.New(zap.NewNop())
	bus := broadcast.NewBus(zap.NewNop())
	defer bus.Close()

	renderer := &recordingRenderer{}
	sentiment := chart.NewManager(surface("sentimentChart"), chart.Loaded(renderer), chart.Spec{Kind: chart.KindBar}, zap.NewNop())
	s.Subscribe(func(key store.Key, value any, _ map[store.Key]any) {
		if key == store.KeyChartData {
			sentiment.Update(value.(analysis.ChartData).Sentiment)
		}
	})

	var completions int
	bus.Listen(func(*analysis.Payload) { completions++ })

	b := New(s, bus, staticUploader(scenarioBody), &fakeNotifier{}, 0, zap.NewNop())
	ctrl := &fakeControl{content: "Analyze Reviews"}

	require.NoError(t, b.Analyze(context.Background(), selection(), ctrl))

	score, _ := s.GetData(store.KeySentimentScore)
	assert.Equal(t, 0.42, score)
	trend, _ := s.GetData(store.KeySalesTrend)
	assert.Equal(t, analysis.TrendUp, trend.(analysis.SalesTrend).Trend)
	phrases, _ := s.GetData(store.KeyCommonPhrases)
	assert.Equal(t, []analysis.Phrase{{Text: "great value", Count: 12}, {Text: "fast shipping", Count: 9}}, phrases)
	done, _ := s.GetData(store.KeyAnalysisComplete)
	assert.Equal(t, true, done)
	info, _ := s.GetData(store.KeyProductInfo)
	assert.Equal(t, analysis.ProductInfo{Name: "Phone X", Brand: "Acme", Price: "199.99"}, info)

	require.Len(t, renderer.specs, 1)
	assert.Equal(t, []float64{0.8, 0.2}, renderer.specs[0].Values)
	assert.Equal(t, 1, completions)

	assert.Equal(t, "Analyze Reviews", ctrl.Content())
	assert.False(t, ctrl.disabled)
	assert.Equal(t, []string{BusyContent, "Analyze Reviews"}, ctrl.history)
}

func TestAnalyzeWritesDefaultsForMissingFields(t *testing.T) {
	s := store.New(zap.NewNop())
	b := New(s, nil, staticUploader(`{"sentiment_score": 0.1}`), nil, 0, zap.NewNop())

	require.NoError(t, b.Analyze(context.Background(), selection(), nil))

	all := s.GetAllData()
	assert.Equal(t, 0.0, all[store.KeySentimentScore])
	assert.Equal(t, analysis.DefaultSalesTrend(), all[store.KeySalesTrend])
	assert.Equal(t, analysis.ProductInfo{Name: "N/A", Brand: "N/A", Price: "N/A"}, all[store.KeyProductInfo])
	assert.Equal(t, analysis.ChartData{}, all[store.KeyChartData])
	assert.Equal(t, []analysis.Phrase{}, all[store.KeyCommonPhrases])
	assert.Equal(t, true, all[store.KeyAnalysisComplete])
}

func TestServerErrorLeavesStoreUnchanged(t *testing.T) {
	s := store.New(zap.NewNop())
	notifier := &fakeNotifier{}

	ok := New(s, nil, staticUploader(scenarioBody), notifier, 0, zap.NewNop())
	require.NoError(t, ok.Analyze(context.Background(), selection(), nil))
	before := s.GetAllData()

	failing := New(s, nil, serverUploader(t, http.StatusInternalServerError, `{"error":"Error processing file"}`), notifier, 0, zap.NewNop())
	ctrl := &fakeControl{content: "Analyze Reviews"}
	err := failing.Analyze(context.Background(), selection(), ctrl)

	require.Error(t, err)
	assert.Equal(t, errors.CodeServer, errors.Code(err))
	assert.Equal(t, before, s.GetAllData())
	assert.Equal(t, "Analyze Reviews", ctrl.Content())
	assert.False(t, ctrl.disabled)
	assert.Equal(t, "Analysis failed: Server error: 500 - Error processing file", notifier.alerts[len(notifier.alerts)-1])
}

func TestFirstFailureMarksIncomplete(t *testing.T) {
	s := store.New(zap.NewNop())
	b := New(s, nil, staticUploader(`{"sentiment_score": 0.1}`), nil, 0, zap.NewNop())

	require.Error(t, b.Analyze(context.Background(), selection(), nil))

	all := s.GetAllData()
	assert.Equal(t, map[store.Key]any{store.KeyAnalysisComplete: false}, all)
}

func TestFirstServerErrorWritesNothing(t *testing.T) {
	s := store.New(zap.NewNop())
	notifier := &fakeNotifier{}
	b := New(s, nil, serverUploader(t, http.StatusBadGateway, "upstream down"), notifier, 0, zap.NewNop())

	err := b.Analyze(context.Background(), selection(), nil)

	require.Error(t, err)
	assert.Equal(t, errors.CodeServer, errors.Code(err))
	assert.Empty(t, s.GetAllData())
	assert.Len(t, notifier.alerts, 1)
}

func TestMalformedPayloadIsContractError(t *testing.T) {
	s := store.New(zap.NewNop())
	b := New(s, nil, staticUploader(`{"sentiment_score": 0.1}`), nil, 0, zap.NewNop())

	err := b.Analyze(context.Background(), selection(), nil)
	assert.Equal(t, errors.CodeContract, errors.Code(err))
	_, ok := s.GetData(store.KeySentimentScore)
	assert.False(t, ok)
}

func TestNoSelectionIsRejectedBeforeUpload(t *testing.T) {
	s := store.New(zap.NewNop())
	notifier := &fakeNotifier{}
	called := false
	b := New(s, nil, uploaderFunc(func(context.Context, *upload.Selection) (*analysis.Payload, error) {
		called = true
		return nil, nil
	}), notifier, 0, zap.NewNop())
	ctrl := &fakeControl{content: "Analyze Reviews"}

	err := b.Analyze(context.Background(), nil, ctrl)

	assert.ErrorIs(t, err, ErrNoFile)
	assert.False(t, called)
	assert.Zero(t, s.Len())
	assert.Empty(t, ctrl.history)
	assert.Equal(t, []string{"Please select a file first"}, notifier.alerts)
}

func TestConcurrentAnalyzeIsRejected(t *testing.T) {
	s := store.New(zap.NewNop())
	notifier := &fakeNotifier{}
	entered := make(chan struct{})
	release := make(chan struct{})
	b := New(s, nil, uploaderFunc(func(context.Context, *upload.Selection) (*analysis.Payload, error) {
		close(entered)
		<-release
		return analysis.Decode([]byte(scenarioBody))
	}), notifier, 0, zap.NewNop())

	errCh := make(chan error, 1)
	go func() { errCh <- b.Analyze(context.Background(), selection(), nil) }()
	<-entered

	err := b.Analyze(context.Background(), selection(), nil)
	assert.ErrorIs(t, err, ErrAnalysisRunning)
	assert.True(t, b.Running())

	close(release)
	require.NoError(t, <-errCh)
	assert.False(t, b.Running())
	assert.Contains(t, notifier.alerts, "Analysis already running")
}

func TestPanicInUploaderRestoresControl(t *testing.T) {
	s := store.New(zap.NewNop())
	b := New(s, nil, uploaderFunc(func(context.Context, *upload.Selection) (*analysis.Payload, error) {
		panic("network stack exploded")
	}), nil, 0, zap.NewNop())
	ctrl := &fakeControl{content: "Analyze Reviews"}

	var err error
	require.NotPanics(t, func() { err = b.Analyze(context.Background(), selection(), ctrl) })
	require.Error(t, err)
	assert.Equal(t, "Analyze Reviews", ctrl.Content())
	assert.False(t, ctrl.disabled)
	assert.False(t, b.Running())
}

func TestBroadcastIsRedelivered(t *testing.T) {
	s := store.New(zap.NewNop())
	bus := broadcast.NewBus(zap.NewNop())
	defer bus.Close()

	var mu sync.Mutex
	var seen []*analysis.Payload
	bus.Listen(func(p *analysis.Payload) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	})

	b := New(s, bus, staticUploader(scenarioBody), nil, 10*time.Millisecond, zap.NewNop())
	require.NoError(t, b.Analyze(context.Background(), selection(), nil))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Same(t, seen[0], seen[1])
}

func TestStaleRedeliveryDoesNotOverrideNewerRun(t *testing.T) {
	s := store.New(zap.NewNop())
	bus := broadcast.NewBus(zap.NewNop())
	defer bus.Close()

	var mu sync.Mutex
	shown := 0.0
	bus.Listen(func(p *analysis.Payload) {
		mu.Lock()
		defer mu.Unlock()
		shown = *p.SentimentScore
	})
	current := func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return shown
	}

	first := New(s, bus, staticUploader(`{"success": true, "sentiment_score": 0.1, "chart_data": {}}`), nil, 60*time.Millisecond, zap.NewNop())
	second := New(s, bus, staticUploader(`{"success": true, "sentiment_score": 0.9, "chart_data": {}}`), nil, 60*time.Millisecond, zap.NewNop())

	require.NoError(t, first.Analyze(context.Background(), selection(), nil))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, second.Analyze(context.Background(), selection(), nil))

	deadline := time.Now().Add(150 * time.Millisecond)
	for time.Now().Before(deadline) {
		stored, _ := s.GetData(store.KeySentimentScore)
		require.Equal(t, 0.9, stored)
		require.Equal(t, 0.9, current())
		time.Sleep(5 * time.Millisecond)
	}
}
