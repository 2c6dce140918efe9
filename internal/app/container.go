package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/api"
	"github.com/kapu/review-dashboard/internal/bridge"
	"github.com/kapu/review-dashboard/internal/broadcast"
	"github.com/kapu/review-dashboard/internal/chart"
	"github.com/kapu/review-dashboard/internal/chart/termchart"
	"github.com/kapu/review-dashboard/internal/config"
	"github.com/kapu/review-dashboard/internal/dom"
	"github.com/kapu/review-dashboard/internal/server"
	"github.com/kapu/review-dashboard/internal/service/assistant"
	"github.com/kapu/review-dashboard/internal/service/session"
	"github.com/kapu/review-dashboard/internal/store"
	"github.com/kapu/review-dashboard/internal/subscribe"
	"github.com/kapu/review-dashboard/internal/upload"
	"github.com/kapu/review-dashboard/internal/widget"
)

// Dashboard is the assembled client side: store, bridge, DOM page and
// widgets, all attached before the first analysis can run.
type Dashboard struct {
	Config *config.Config
	Logger *zap.Logger

	Store  *store.Store
	Bus    *broadcast.Bus
	Client *api.Client
	Bridge *bridge.Bridge
	Page   *dom.Page
	Picker *upload.Picker

	ProductInfo *widget.ProductInfo
	Stars       *widget.SentimentStars
	Forecast    *widget.SalesForecast
	Phrases     *widget.PhraseList
	WordCloud   *widget.WordCloud
	Charts      *widget.Charts
	Chat        *widget.ChatPanel

	handles   []*subscribe.Handle
	closeOnce sync.Once

	alertMu sync.Mutex
	alerts  []string
}

// BuildDashboard constructs the store first and attaches every consumer to
// it, so no consumer ever has to wait for the store to appear.
func BuildDashboard(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dashboard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	page, err := dom.NewPage(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create dashboard page: %w", err)
	}

	d := &Dashboard{
		Config: cfg,
		Logger: logger,
		Store:  store.New(logger),
		Bus:    broadcast.NewBus(logger),
		Client: api.NewClient(cfg.Dashboard.APIBaseURL, cfg.Dashboard.RequestTimeout, logger),
		Page:   page,
		Picker: upload.NewPicker(),
	}
	d.Bridge = bridge.New(d.Store, d.Bus, d.Client, bridge.NotifierFunc(d.alert), cfg.Dashboard.RedeliveryDelay, logger)

	surfaces := widget.ChartSurfaces{
		Sentiment:    termchart.NewCanvas(widget.SentimentSurface),
		Distribution: termchart.NewCanvas(widget.DistributionSurface),
		Counts:       termchart.NewCanvas(widget.CountSurface),
	}
	d.ProductInfo = widget.NewProductInfo()
	d.Stars = widget.NewSentimentStars()
	d.Forecast = widget.NewSalesForecast()
	d.Phrases = widget.NewPhraseList()
	d.WordCloud = widget.NewWordCloud()
	d.Charts = widget.NewCharts(surfaces, chart.Loaded(termchart.New()), drawCanvas, logger)
	d.Chat = widget.NewChatPanel(d.Client, logger)

	src := subscribe.Static(d.Store)
	opts := []subscribe.Option{
		subscribe.WithRetry(cfg.Dashboard.RetryInterval, cfg.Dashboard.RetryAttempts),
		subscribe.WithLogger(logger),
	}
	d.handles = append(d.handles, subscribe.Attach(ctx, src, d.Bus, page.Consumer(), append(opts, subscribe.WithName("dom"))...))
	for _, w := range d.Widgets() {
		d.handles = append(d.handles, subscribe.Attach(ctx, src, d.Bus, w, append(opts, subscribe.WithName(w.Name()))...))
	}

	logger.Info("Dashboard assembled",
		zap.String("api", cfg.Dashboard.APIBaseURL),
		zap.Int("consumers", len(d.handles)),
	)
	return d, nil
}

func drawCanvas(s chart.Surface) string {
	if c, ok := s.(*termchart.Canvas); ok {
		return c.Content()
	}
	return ""
}

// Widgets lists the widgets in display order.
func (d *Dashboard) Widgets() []widget.Widget {
	return []widget.Widget{d.ProductInfo, d.Stars, d.Forecast, d.Charts, d.Phrases, d.WordCloud, d.Chat}
}

// Select picks a CSV from disk and shows its status on the page.
func (d *Dashboard) Select(path string) (*upload.Selection, error) {
	sel, err := d.Picker.Pick(path)
	d.Page.SetFileStatus(d.Picker.Status())
	if err != nil {
		d.alert(err.Error())
		return nil, err
	}
	return sel, nil
}

// Analyze selects path and runs the analysis through the page's analyze
// button.
func (d *Dashboard) Analyze(ctx context.Context, path string) error {
	sel, err := d.Select(path)
	if err != nil {
		return err
	}
	return d.Bridge.Analyze(ctx, sel, d.Page.AnalyzeButton())
}

// Reset drops pending completion redeliveries and clears the store, which
// returns the page and every widget to its placeholder.
func (d *Dashboard) Reset() {
	d.Bus.CancelPending()
	d.Store.Clear()
}

// Complete reports whether the last analysis finished successfully.
func (d *Dashboard) Complete() bool {
	v, ok := d.Store.GetData(store.KeyAnalysisComplete)
	done, _ := v.(bool)
	return ok && done
}

// Render draws every widget, one card per widget.
func (d *Dashboard) Render() string {
	widgets := d.Widgets()
	parts := make([]string, 0, len(widgets))
	for _, w := range widgets {
		parts = append(parts, w.Render())
	}
	return strings.Join(parts, "\n")
}

// Alerts returns the user-facing messages raised so far.
func (d *Dashboard) Alerts() []string {
	d.alertMu.Lock()
	defer d.alertMu.Unlock()
	out := make([]string, len(d.alerts))
	copy(out, d.alerts)
	return out
}

func (d *Dashboard) alert(message string) {
	d.alertMu.Lock()
	d.alerts = append(d.alerts, message)
	d.alertMu.Unlock()
	d.Logger.Warn("Dashboard alert", zap.String("message", message))
}

// Close detaches every consumer, disposes the charts and cancels pending
// redeliveries.
func (d *Dashboard) Close() {
	d.closeOnce.Do(func() {
		for _, h := range d.handles {
			h.Detach()
		}
		d.Charts.Close()
		d.Bus.Close()
	})
}

// Analyzer is the assembled analysis service.
type Analyzer struct {
	Server    *server.Server
	Sessions  session.Store
	Assistant *assistant.Assistant

	closers []func()
}

// BuildAnalyzer wires the session store, assistant providers and HTTP
// server. Closers already registered are unwound when a later step fails.
func BuildAnalyzer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (a *Analyzer, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	var sessions session.Store
	if addr := cfg.RedisAddr(); addr != "" {
		redisStore, err := session.NewRedisStore(session.RedisConfig{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create session store: %w", err)
		}
		sessions = redisStore
	} else {
		logger.Info("Redis not configured, keeping chat context in memory")
		sessions = session.NewMemoryStore(cfg.Redis.TTL)
	}
	closers = append(closers, func() {
		_ = sessions.Close()
	})

	providers, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	helper := assistant.New(logger, providers...)
	if len(helper.Providers()) == 0 {
		logger.Warn("No assistant provider configured, chat will answer with the failure message")
	}

	srv := server.New(server.Config{
		ListenAddr:     cfg.Analyzer.ListenAddr,
		UploadDir:      cfg.Analyzer.UploadDir,
		MaxUploadBytes: cfg.Analyzer.MaxUploadBytes,
		AllowedOrigins: cfg.Analyzer.AllowedOrigins,
		SessionTTL:     cfg.Redis.TTL,
	}, analysis.NewAnalyzer(cfg.Analyzer.Workers, logger), sessions, helper, logger)

	logger.Info("Analyzer assembled",
		zap.Strings("providers", helper.Providers()),
		zap.Bool("redis", cfg.RedisAddr() != ""),
	)

	return &Analyzer{
		Server:    srv,
		Sessions:  sessions,
		Assistant: helper,
		closers:   closers,
	}, nil
}

func buildProviders(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]assistant.Provider, error) {
	var providers []assistant.Provider
	if cfg.Gemini.APIKey != "" {
		gemini, err := assistant.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, "", logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini provider: %w", err)
		}
		providers = append(providers, gemini)
	}
	if cfg.OpenAI.APIKey != "" && (cfg.OpenAI.EnableFallback || len(providers) == 0) {
		providers = append(providers, assistant.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger))
	}
	return providers, nil
}

// Close releases the session store.
func (a *Analyzer) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
