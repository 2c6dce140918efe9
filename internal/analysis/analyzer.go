package analysis

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Column names read from the uploaded CSV.
const (
	ColumnReviews = "Reviews"
	ColumnProduct = "Product Name"
	ColumnBrand   = "Brand Name"
	ColumnPrice   = "Price"
	ColumnRating  = "Rating"
)

// MaxContextChars bounds the review text kept for the chat assistant.
const MaxContextChars = 3000

// ErrEmptyCSV is returned when the upload has no header row.
var ErrEmptyCSV = errors.New("csv has no header row")

// MissingColumnsError reports required columns absent from the upload.
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("Missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Result is a finished analysis: the response payload plus the review text
// the chat assistant answers from.
type Result struct {
	Payload     *Payload
	ReviewsText string
	Reviews     int
}

type review struct {
	text   string
	score  float64
	label  string
	rating *float64
}

// Analyzer scores uploaded review CSVs.
type Analyzer struct {
	workers int
	logger  *zap.Logger
}

func NewAnalyzer(workers int, logger *zap.Logger) *Analyzer {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{workers: workers, logger: logger}
}

// Analyze reads a CSV with a Reviews column and builds the upload response.
func (a *Analyzer) Analyze(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := columns[ColumnReviews]; !ok {
		available := make([]string, len(header))
		copy(available, header)
		return nil, &MissingColumnsError{Missing: []string{ColumnReviews}, Available: available}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	field := func(rec []string, col string) (string, bool) {
		idx, ok := columns[col]
		if !ok || idx >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[idx]), true
	}

	reviews := make([]*review, 0, len(records))
	var first []string
	for _, rec := range records {
		text, _ := field(rec, ColumnReviews)
		if text == "" {
			continue
		}
		if first == nil {
			first = rec
		}
		rv := &review{text: text}
		if raw, ok := field(rec, ColumnRating); ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(v) {
				rv.rating = &v
			}
		}
		reviews = append(reviews, rv)
	}

	if err := a.score(ctx, reviews); err != nil {
		return nil, err
	}

	payload := a.build(reviews, first, field, columns)
	a.logger.Info("Review analysis completed",
		zap.Int("reviews", len(reviews)),
		zap.Float64("sentiment", *payload.SentimentScore),
		zap.String("trend", payload.SalesTrend.Trend),
	)

	return &Result{
		Payload:     payload,
		ReviewsText: reviewsText(reviews),
		Reviews:     len(reviews),
	}, nil
}

func (a *Analyzer) score(ctx context.Context, reviews []*review) error {
	p := pool.New().WithMaxGoroutines(a.workers)
	for _, rv := range reviews {
		rv := rv
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			rv.score = Score(rv.text)
			rv.label = Classify(rv.score)
		})
	}
	p.Wait()
	return ctx.Err()
}

func (a *Analyzer) build(reviews []*review, first []string, field func([]string, string) (string, bool), columns map[string]int) *Payload {
	var (
		posSum, negSum, total float64
		pos, neu, neg         int
		allTexts, negTexts    []string
	)
	for _, rv := range reviews {
		total += rv.score
		allTexts = append(allTexts, rv.text)
		switch rv.label {
		case LabelPositive:
			pos++
			posSum += rv.score
		case LabelNegative:
			neg++
			negSum += rv.score
			negTexts = append(negTexts, rv.text)
		default:
			neu++
		}
	}

	avg := mean(total, len(reviews))
	trend := TrendFor(avg)
	success := true

	payload := &Payload{
		Success:        &success,
		SentimentScore: &avg,
		SalesTrend: &SalesTrend{
			Trend:        trend,
			AvgSentiment: math.Round(avg*100) / 100,
			Message:      fmt.Sprintf("Predicted sales trend is %s based on sentiment.", strings.ToLower(trend)),
		},
		ProductInfo: productInfo(first, field),
		ChartData: &ChartData{
			Sentiment: &Series{
				Labels: []string{"Positive", "Negative"},
				Means:  []float64{mean(posSum, pos), mean(negSum, neg)},
			},
			Distribution: &Series{
				Labels: []string{"Positive", "Neutral", "Negative"},
				Values: []float64{float64(pos), float64(neu), float64(neg)},
			},
			Counts: &Series{
				Labels: []string{"Total Reviews"},
				Values: []float64{float64(len(reviews))},
			},
		},
		CommonPhrases:       CommonPhrases(allTexts, MaxPhrases),
		NegativePhrases:     CommonPhrases(negTexts, MaxPhrases),
		ComplaintCategories: ComplaintCategories(negTexts),
	}

	if _, ok := columns[ColumnRating]; ok {
		payload.RatingStats = ratingStats(reviews)
	}
	return payload
}

func productInfo(first []string, field func([]string, string) (string, bool)) *ProductInfo {
	info := ProductInfo{}
	if first != nil {
		info.Name, _ = field(first, ColumnProduct)
		info.Brand, _ = field(first, ColumnBrand)
		if price, ok := field(first, ColumnPrice); ok {
			if v, err := strconv.ParseFloat(strings.TrimPrefix(price, "$"), 64); err == nil {
				price = strconv.FormatFloat(v, 'f', -1, 64)
			}
			info.Price = price
		}
	}
	info = info.WithDefaults()
	return &info
}

func ratingStats(reviews []*review) *RatingStats {
	var (
		sum, sentiment float64
		n              int
	)
	dist := map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0}
	for _, rv := range reviews {
		if rv.rating == nil {
			continue
		}
		n++
		sum += *rv.rating
		sentiment += rv.score
		if r := *rv.rating; r == math.Trunc(r) && r >= 1 && r <= 5 {
			dist[strconv.Itoa(int(r))]++
		}
	}
	if n == 0 {
		return nil
	}
	avgRating := sum / float64(n)
	sentimentMean := sentiment / float64(n)
	return &RatingStats{
		AverageRating:      avgRating,
		RatingDistribution: dist,
		SentimentMean:      sentimentMean,
		ComparisonScore:    avgRating/5 - sentimentMean,
	}
}

func reviewsText(reviews []*review) string {
	var b strings.Builder
	for i, rv := range reviews {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(rv.text)
		if b.Len() >= MaxContextChars {
			break
		}
	}
	text := b.String()
	if len(text) > MaxContextChars {
		text = strings.ToValidUTF8(text[:MaxContextChars], "")
	}
	return text
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
