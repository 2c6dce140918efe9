package analysis

import (
	"sync"

	"github.com/jonreiter/govader"
)

// Sentiment labels assigned per review.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// Classification thresholds on the compound score.
const (
	positiveThreshold = 0.05
	negativeThreshold = -0.05
)

// The VADER lexicon is loaded once; the analyzer is read-only afterwards and
// safe to share between scoring workers.
var vader = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// Score returns the VADER compound score of text, in [-1, 1].
func Score(text string) float64 {
	return vader().PolarityScores(text).Compound
}

// Classify maps a compound score to a sentiment label.
func Classify(score float64) string {
	switch {
	case score > positiveThreshold:
		return LabelPositive
	case score < negativeThreshold:
		return LabelNegative
	default:
		return LabelNeutral
	}
}

// TrendFor derives the sales trend from the average sentiment.
func TrendFor(avg float64) string {
	switch {
	case avg > 0.5:
		return TrendUp
	case avg < -0.2:
		return TrendDown
	default:
		return TrendStable
	}
}
