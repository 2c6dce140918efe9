package widget

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kapu/review-dashboard/internal/analysis"
	"github.com/kapu/review-dashboard/internal/store"
)

// MaxListedPhrases caps the phrase list.
const MaxListedPhrases = 10

// PhraseList shows the most common phrases in analysis order.
type PhraseList struct {
	mu      sync.RWMutex
	ready   bool
	phrases []analysis.Phrase
}

func NewPhraseList() *PhraseList {
	return &PhraseList{}
}

func (w *PhraseList) Name() string { return "commonPhrases" }

func (w *PhraseList) Keys() []store.Key { return keys(store.KeyCommonPhrases) }

func (w *PhraseList) Apply(_ store.Key, value any) {
	if phrases, ok := value.([]analysis.Phrase); ok {
		w.set(phrases)
	}
}

func (w *PhraseList) ApplyCompletion(p *analysis.Payload) {
	w.set(phrasesOf(p))
}

func (w *PhraseList) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = false
	w.phrases = nil
}

// Items returns the listed phrases as "phrase (count)".
func (w *PhraseList) Items() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	items := make([]string, 0, len(w.phrases))
	for _, p := range w.phrases {
		items = append(items, fmt.Sprintf("%s (%d)", p.Text, p.Count))
	}
	return items
}

func (w *PhraseList) Ready() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ready
}

func (w *PhraseList) Render() string {
	if !w.Ready() {
		return card("Common Phrases", mutedStyle.Render(WaitingText))
	}
	items := w.Items()
	if len(items) == 0 {
		return card("Common Phrases", mutedStyle.Render("No common phrases found"))
	}
	return card("Common Phrases", "• "+strings.Join(items, "\n• "))
}

func (w *PhraseList) set(phrases []analysis.Phrase) {
	if len(phrases) > MaxListedPhrases {
		phrases = phrases[:MaxListedPhrases]
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = true
	w.phrases = append([]analysis.Phrase(nil), phrases...)
}

// Font size bounds of the word cloud.
const (
	MinWordSize = 14
	MaxWordSize = 48
)

type Word struct {
	Text  string
	Count int
	Size  int
}

// WordCloud sizes each common phrase by its count relative to the largest.
type WordCloud struct {
	mu    sync.RWMutex
	ready bool
	words []Word
}

func NewWordCloud() *WordCloud {
	return &WordCloud{}
}

// Weigh scales phrase counts linearly onto the font size range.
func Weigh(phrases []analysis.Phrase) []Word {
	words := make([]Word, 0, len(phrases))
	maxCount := 0
	for _, p := range phrases {
		maxCount = max(maxCount, p.Count)
	}
	for _, p := range phrases {
		size := MinWordSize
		if maxCount > 0 {
			size = MinWordSize + int(math.Round(float64(p.Count)/float64(maxCount)*(MaxWordSize-MinWordSize)))
		}
		words = append(words, Word{Text: p.Text, Count: p.Count, Size: size})
	}
	return words
}

func (w *WordCloud) Name() string { return "wordCloud" }

func (w *WordCloud) Keys() []store.Key { return keys(store.KeyCommonPhrases) }

func (w *WordCloud) Apply(_ store.Key, value any) {
	if phrases, ok := value.([]analysis.Phrase); ok {
		w.set(phrases)
	}
}

func (w *WordCloud) ApplyCompletion(p *analysis.Payload) {
	w.set(phrasesOf(p))
}

func (w *WordCloud) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = false
	w.words = nil
}

func (w *WordCloud) Words() []Word {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]Word(nil), w.words...)
}

func (w *WordCloud) Render() string {
	w.mu.RLock()
	ready := w.ready
	w.mu.RUnlock()
	if !ready {
		return card("Word Cloud", mutedStyle.Render("Word cloud will appear here after analysis"))
	}
	parts := make([]string, 0)
	for _, word := range w.Words() {
		text := word.Text
		if word.Size >= (MinWordSize+MaxWordSize)/2 {
			text = strings.ToUpper(text)
		}
		parts = append(parts, text)
	}
	return card("Word Cloud", strings.Join(parts, "  "))
}

func (w *WordCloud) set(phrases []analysis.Phrase) {
	words := Weigh(phrases)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ready = true
	w.words = words
}
