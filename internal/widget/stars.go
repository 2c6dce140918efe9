package widget

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/store"
)

type StarsView struct {
	Ready bool
	Score float64
	// Rating is Score mapped from [-1, 1] onto [0, 5], one decimal.
	Rating float64
	Text   string
}

// SentimentStars shows the overall sentiment as a five-star rating.
type SentimentStars struct {
	mu   sync.RWMutex
	view StarsView
}

func NewSentimentStars() *SentimentStars {
	return &SentimentStars{}
}

// StarRating maps a compound score onto the five-star scale.
func StarRating(score float64) float64 {
	score = math.Max(-1, math.Min(1, score))
	return math.Round((score+1)/2*5*10) / 10
}

func (w *SentimentStars) Name() string { return "sentimentStars" }

func (w *SentimentStars) Keys() []store.Key { return keys(store.KeySentimentScore) }

func (w *SentimentStars) Apply(_ store.Key, value any) {
	if score, ok := value.(float64); ok {
		w.set(score)
	}
}

func (w *SentimentStars) ApplyCompletion(p *analysis.Payload) {
	w.set(scoreOf(p))
}

func (w *SentimentStars) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = StarsView{}
}

func (w *SentimentStars) View() StarsView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.view
}

func (w *SentimentStars) Render() string {
	v := w.View()
	if !v.Ready {
		return card("Overall Sentiment Rating", mutedStyle.Render(WaitingText))
	}
	full := int(math.Round(v.Rating))
	stars := strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
	return card("Overall Sentiment Rating", stars+" "+v.Text)
}

func (w *SentimentStars) set(score float64) {
	rating := StarRating(score)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.view = StarsView{
		Ready:  true,
		Score:  score,
		Rating: rating,
		Text:   fmt.Sprintf("(%.1f/5)", rating),
	}
}
