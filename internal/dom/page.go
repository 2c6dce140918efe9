// Package dom keeps the dashboard's HTML page and the imperative updaters
// that patch it after each analysis.
package dom

import (
	"bytes"
	_ "embed"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/store"
	"github.com/kapu/review-dashboard/internal/subscribe"
	"go.uber.org/zap"
)

//go:embed dashboard.html
var dashboardHTML []byte

// MaxPhrases is how many phrases the list shows.
const MaxPhrases = 10

const (
	phrasePlaceholder = `<li class="text-gray-500">Phrases will appear here after analysis</li>`
	analyzeSelector   = ".btn-analyze"
)

// Page is the dashboard document. All access goes through its mutex.
type Page struct {
	mu     sync.Mutex
	doc    *goquery.Document
	logger *zap.Logger
}

// NewPage parses the embedded dashboard page.
func NewPage(logger *zap.Logger) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(dashboardHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard page: %w", err)
	}
	return &Page{doc: doc, logger: logger}, nil
}

// UpdateProductInfo writes name, brand and price. Empty fields show N/A.
func (p *Page) UpdateProductInfo(info analysis.ProductInfo) {
	info = info.WithDefaults()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#productName").SetText(info.Name)
	p.doc.Find("#brandName").SetText(info.Brand)
	p.doc.Find("#price").SetText(info.Price)
	p.logger.Debug("Product info updated in page", zap.String("product", info.Name))
}

// UpdatePhrases lists the first MaxPhrases phrases. An empty list leaves the
// current content in place.
func (p *Page) UpdatePhrases(phrases []analysis.Phrase) {
	if len(phrases) == 0 {
		return
	}
	if len(phrases) > MaxPhrases {
		phrases = phrases[:MaxPhrases]
	}

	var b strings.Builder
	for _, ph := range phrases {
		fmt.Fprintf(&b, `<li class="text-gray-700">%s (%d)</li>`, html.EscapeString(ph.Text), ph.Count)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#phraseList").SetHtml(b.String())
}

// UpdateSentiment writes the score and the sales trend line.
func (p *Page) UpdateSentiment(score float64, trend analysis.SalesTrend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#sentimentScore").SetText(fmt.Sprintf("%.2f", score))
	p.doc.Find("#salesTrend").SetText(fmt.Sprintf("%s: %s", trend.Trend, trend.Message))
}

// SetFileStatus writes the upload status line.
func (p *Page) SetFileStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#fileStatus").SetText(status)
}

// Reset puts every updated element back to its placeholder.
func (p *Page) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc.Find("#productName, #brandName, #price").SetText(analysis.NotAvailable)
	p.doc.Find("#sentimentScore, #salesTrend").SetText("-")
	p.doc.Find("#phraseList").SetHtml(phrasePlaceholder)
}

// Text returns the text of the first element matching selector.
func (p *Page) Text(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.doc.Find(selector).First().Text())
}

// Items returns the text of every element matching selector.
func (p *Page) Items(selector string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	items := make([]string, 0)
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		items = append(items, s.Text())
	})
	return items
}

// HTML renders the whole document.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

func (p *Page) WriteFile(path string) error {
	out, err := p.HTML()
	if err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to write page: %w", err)
	}
	return nil
}

// AnalyzeButton returns the analyze trigger as a control the bridge can
// disable and restore.
func (p *Page) AnalyzeButton() *Button {
	return &Button{page: p, selector: analyzeSelector}
}

// Button is one element of the page used as a trigger control.
type Button struct {
	page     *Page
	selector string
}

func (b *Button) Content() string {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	content, err := b.page.doc.Find(b.selector).First().Html()
	if err != nil {
		return ""
	}
	return content
}

func (b *Button) SetContent(content string) {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	b.page.doc.Find(b.selector).First().SetHtml(content)
}

func (b *Button) SetDisabled(disabled bool) {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	sel := b.page.doc.Find(b.selector).First()
	if disabled {
		sel.SetAttr("disabled", "disabled")
		return
	}
	sel.RemoveAttr("disabled")
}

func (b *Button) Disabled() bool {
	b.page.mu.Lock()
	defer b.page.mu.Unlock()
	_, ok := b.page.doc.Find(b.selector).First().Attr("disabled")
	return ok
}

// Consumer feeds the page's updaters from the store and the broadcast.
func (p *Page) Consumer() subscribe.Consumer {
	return &pageConsumer{page: p}
}

type pageConsumer struct {
	page *Page

	mu    sync.Mutex
	score float64
	trend analysis.SalesTrend
}

func (c *pageConsumer) Keys() []store.Key {
	return []store.Key{store.KeyProductInfo, store.KeyCommonPhrases, store.KeySentimentScore, store.KeySalesTrend}
}

func (c *pageConsumer) Apply(_ store.Key, value any) {
	switch v := value.(type) {
	case analysis.ProductInfo:
		c.page.UpdateProductInfo(v)
	case []analysis.Phrase:
		c.page.UpdatePhrases(v)
	case float64:
		c.mu.Lock()
		c.score = v
		score, trend := c.score, c.trend
		c.mu.Unlock()
		c.page.UpdateSentiment(score, trend)
	case analysis.SalesTrend:
		c.mu.Lock()
		c.trend = v
		score, trend := c.score, c.trend
		c.mu.Unlock()
		c.page.UpdateSentiment(score, trend)
	}
}

func (c *pageConsumer) ApplyCompletion(payload *analysis.Payload) {
	info := analysis.ProductInfo{}
	if payload.ProductInfo != nil {
		info = *payload.ProductInfo
	}
	c.page.UpdateProductInfo(info)
	c.page.UpdatePhrases(payload.CommonPhrases)

	score := 0.0
	if payload.SentimentScore != nil {
		score = *payload.SentimentScore
	}
	trend := analysis.DefaultSalesTrend()
	if payload.SalesTrend != nil {
		trend = *payload.SalesTrend
	}
	c.mu.Lock()
	c.score, c.trend = score, trend
	c.mu.Unlock()
	c.page.UpdateSentiment(score, trend)
}

func (c *pageConsumer) Reset() {
	c.mu.Lock()
	c.score, c.trend = 0, analysis.SalesTrend{}
	c.mu.Unlock()
	c.page.Reset()
}
