package widget

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/store"
	"go.uber.org/zap"
)

const noAnalysisAnswer = "Please upload and analyze a CSV file first, then I can help you with insights about your data."

const helpAnswer = `I can help you understand your product analysis! Try asking me about:
  • Product information
  • Overall sentiment
  • Sales trends
  • Review counts
  • Common phrases or complaints
For example: "What's the overall sentiment?" or "How many reviews were analyzed?"`

// Asker sends a question to the chat endpoint.
type Asker interface {
	Chat(ctx context.Context, question string) (string, error)
}

type Message struct {
	FromUser bool
	Text     string
	At       time.Time
}

// chatContext is what the panel knows about the current analysis.
type chatContext struct {
	product  analysis.ProductInfo
	score    float64
	trend    analysis.SalesTrend
	phrases  []analysis.Phrase
	total    int
	positive int
	negative int
}

// ChatPanel answers questions about the analysis. It asks the chat endpoint
// and falls back to answers built from the data it has seen.
type ChatPanel struct {
	asker  Asker
	logger *zap.Logger

	mu      sync.RWMutex
	data    *chatContext
	history []Message
}

func NewChatPanel(asker Asker, logger *zap.Logger) *ChatPanel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatPanel{asker: asker, logger: logger}
}

func (w *ChatPanel) Name() string { return "chat" }

func (w *ChatPanel) Keys() []store.Key {
	return keys(store.KeyProductInfo, store.KeySentimentScore, store.KeySalesTrend, store.KeyCommonPhrases, store.KeyChartData)
}

func (w *ChatPanel) Apply(key store.Key, value any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.data == nil {
		w.data = &chatContext{product: analysis.ProductInfo{}.WithDefaults(), trend: analysis.DefaultSalesTrend()}
	}
	switch v := value.(type) {
	case analysis.ProductInfo:
		w.data.product = v.WithDefaults()
	case float64:
		if key == store.KeySentimentScore {
			w.data.score = v
		}
	case analysis.SalesTrend:
		w.data.trend = v
	case []analysis.Phrase:
		w.data.phrases = append([]analysis.Phrase(nil), v...)
	case analysis.ChartData:
		w.data.total, w.data.positive, w.data.negative = reviewCounts(v)
	}
}

func (w *ChatPanel) ApplyCompletion(p *analysis.Payload) {
	c := &chatContext{
		product: productOf(p),
		score:   scoreOf(p),
		trend:   trendOf(p),
		phrases: phrasesOf(p),
	}
	c.total, c.positive, c.negative = reviewCounts(chartsOf(p))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = c
}

// Reset forgets the analysis. The conversation stays.
func (w *ChatPanel) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = nil
}

// Ask records question, answers it and returns the answer.
func (w *ChatPanel) Ask(ctx context.Context, question string) string {
	w.record(true, question)
	answer := w.answer(ctx, question)
	w.record(false, answer)
	return answer
}

func (w *ChatPanel) History() []Message {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Message(nil), w.history...)
}

func (w *ChatPanel) Render() string {
	history := w.History()
	if len(history) == 0 {
		return card("Ask about the reviews", mutedStyle.Render("Ask a question about the analysis"))
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := "Bot"
		if m.FromUser {
			who = "You"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", who, m.Text))
	}
	return card("Ask about the reviews", strings.Join(lines, "\n"))
}

func (w *ChatPanel) answer(ctx context.Context, question string) string {
	w.mu.RLock()
	data := w.data
	w.mu.RUnlock()
	if data == nil {
		return noAnalysisAnswer
	}

	if w.asker != nil {
		answer, err := w.asker.Chat(ctx, question)
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer
		}
		if err != nil {
			w.logger.Warn("Chat endpoint failed, answering locally", zap.Error(err))
		}
	}
	return localAnswer(data, question)
}

func (w *ChatPanel) record(fromUser bool, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, Message{FromUser: fromUser, Text: text, At: time.Now()})
}

func localAnswer(d *chatContext, question string) string {
	q := strings.ToLower(question)
	switch {
	case containsAny(q, "product", "name"):
		return fmt.Sprintf("This analysis is for %s by %s, priced at %s.", d.product.Name, d.product.Brand, d.product.Price)
	case containsAny(q, "sentiment", "feeling"):
		mood := "neutral"
		if d.score > 0.1 {
			mood = "positive"
		} else if d.score < -0.1 {
			mood = "negative"
		}
		return strings.TrimSpace(fmt.Sprintf("The overall sentiment is %s with a score of %.3f. %s", mood, d.score, d.trend.Message))
	case containsAny(q, "sales", "trend"):
		msg := d.trend.Message
		if msg == "" {
			msg = "No trend information available."
		}
		return fmt.Sprintf("Sales trend: %s. %s", d.trend.Trend, msg)
	case containsAny(q, "how many", "count", "total"):
		return fmt.Sprintf("I analyzed %d total reviews: %d positive, %d negative.", d.total, d.positive, d.negative)
	case containsAny(q, "phrase", "keyword", "common"):
		top := phraseTexts(d.phrases, 5)
		if len(top) == 0 {
			return "No common phrases found in the analysis."
		}
		return "Common phrases in reviews: " + strings.Join(top, ", ")
	case containsAny(q, "problem", "complaint", "issue"):
		top := phraseTexts(d.phrases, 3)
		issues := "none identified"
		if len(top) > 0 {
			issues = strings.Join(top, ", ")
		}
		return fmt.Sprintf("Based on the sentiment analysis, %d reviews were negative. Common issues mentioned include the phrases: %s.", d.negative, issues)
	default:
		return helpAnswer
	}
}

// reviewCounts reads totals from the count series and the
// positive/neutral/negative distribution.
func reviewCounts(c analysis.ChartData) (total, positive, negative int) {
	if pts := c.Counts.Points(); len(pts) > 0 {
		total = int(pts[0])
	}
	if pts := c.Distribution.Points(); len(pts) >= 3 {
		positive, negative = int(pts[0]), int(pts[2])
	}
	return total, positive, negative
}

func phraseTexts(phrases []analysis.Phrase, n int) []string {
	out := make([]string, 0, n)
	for i, p := range phrases {
		if i == n {
			break
		}
		out = append(out, p.Text)
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
