// Package bridge drives one upload-and-analyze cycle and publishes its result
// to the store and the completion broadcast.
package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/broadcast"
	"github.com/kapu/review-dashboard/internal/store"
	"github.com/kapu/review-dashboard/internal/upload"
	"github.com/kapu/review-dashboard/pkg/errors"
	"go.uber.org/zap"
)

// BusyContent replaces the trigger control's content while a run is in flight.
const BusyContent = "Analyzing..."

// DefaultRedeliveryDelay is the grace window before the completion broadcast
// fires a second time.
const DefaultRedeliveryDelay = 500 * time.Millisecond

var (
	ErrNoFile          = errors.NewUserError("Please select a file first")
	ErrAnalysisRunning = errors.NewUserError("Analysis already running")
)

// Control is the UI element that triggered the analysis.
type Control interface {
	Content() string
	SetContent(content string)
	SetDisabled(disabled bool)
}

// Notifier shows a message to the user.
type Notifier interface {
	Alert(message string)
}

// Uploader submits the file to the analysis endpoint.
type Uploader interface {
	Upload(ctx context.Context, sel *upload.Selection) (*analysis.Payload, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Alert(message string) { f(message) }

// Bridge runs one analysis at a time and moves its result into the store and
// onto the completion bus.
type Bridge struct {
	store      *store.Store
	bus        *broadcast.Bus
	uploader   Uploader
	notifier   Notifier
	redelivery time.Duration
	running    atomic.Bool
	logger     *zap.Logger
}

// New creates a Bridge writing into s and publishing on bus. A nil bus skips
// the broadcast; a nil notifier drops alerts.
func New(s *store.Store, bus *broadcast.Bus, uploader Uploader, notifier Notifier, redelivery time.Duration, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	return &Bridge{
		store:      s,
		bus:        bus,
		uploader:   uploader,
		notifier:   notifier,
		redelivery: redelivery,
		logger:     logger,
	}
}

// Running reports whether an analysis is in flight.
func (b *Bridge) Running() bool {
	return b.running.Load()
}

// Analyze uploads sel, writes the result into the store and broadcasts it.
// Failures are shown through the notifier and returned; they never overwrite
// the last successful result. control may be nil.
func (b *Bridge) Analyze(ctx context.Context, sel *upload.Selection, control Control) (err error) {
	if sel == nil {
		b.notifier.Alert(ErrNoFile.Message)
		return ErrNoFile
	}
	if !b.running.CompareAndSwap(false, true) {
		b.notifier.Alert(ErrAnalysisRunning.Message)
		return ErrAnalysisRunning
	}
	defer b.running.Store(false)

	runID := uuid.NewString()
	logger := b.logger.With(zap.String("run", runID), zap.String("file", sel.Name))

	if control != nil {
		prior := control.Content()
		control.SetDisabled(true)
		control.SetContent(BusyContent)
		defer func() {
			control.SetContent(prior)
			control.SetDisabled(false)
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.NewDashboardError("unexpected failure during analysis", errors.CodeDashboard, 500, map[string]any{
				"run": runID,
			}).WithCause(fmt.Errorf("%v", r))
		}
		if err != nil {
			b.fail(logger, err)
		}
	}()

	logger.Info("Analysis started", zap.Int64("size", sel.Size))

	payload, err := b.uploader.Upload(ctx, sel)
	if err != nil {
		return err
	}
	if !payload.Valid() {
		return errors.NewContractError("Invalid response format from server", "success|chart_data", nil)
	}

	b.publish(payload)
	logger.Info("Analysis completed")
	return nil
}

func (b *Bridge) publish(p *analysis.Payload) {
	score := 0.0
	if p.SentimentScore != nil {
		score = *p.SentimentScore
	}
	trend := analysis.DefaultSalesTrend()
	if p.SalesTrend != nil {
		trend = *p.SalesTrend
	}
	info := analysis.ProductInfo{}
	if p.ProductInfo != nil {
		info = *p.ProductInfo
	}
	charts := analysis.ChartData{}
	if p.ChartData != nil {
		charts = *p.ChartData
	}
	phrases := append([]analysis.Phrase{}, p.CommonPhrases...)

	if b.bus != nil {
		b.bus.CancelPending()
	}
	b.store.SetData(store.KeySentimentScore, score)
	b.store.SetData(store.KeySalesTrend, trend)
	b.store.SetData(store.KeyProductInfo, info.WithDefaults())
	b.store.SetData(store.KeyChartData, charts)
	b.store.SetData(store.KeyCommonPhrases, phrases)
	b.store.SetData(store.KeyAnalysisComplete, true)

	if b.bus != nil {
		b.bus.PublishAtLeastOnce(p, b.redelivery)
	}
}

// fail surfaces err and marks the analysis incomplete unless an earlier run
// already succeeded. A non-2xx response writes nothing.
func (b *Bridge) fail(logger *zap.Logger, err error) {
	code := errors.Code(err)
	logger.Error("Analysis failed",
		zap.String("code", code),
		zap.Error(err),
	)
	b.notifier.Alert(errors.UserMessage(err))

	if code == errors.CodeServer {
		return
	}
	if done, ok := b.store.GetData(store.KeyAnalysisComplete); ok && done == true {
		return
	}
	b.store.SetData(store.KeyAnalysisComplete, false)
}
