package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const reviewsCSV = "\ufeffProduct Name,Brand Name,Price,Reviews,Rating\n" +
	"Phone X,Acme,$199.99,\"Great phone, love the battery!\",5\n" +
	"Phone X,Acme,$199.99,Terrible screen and slow performance,1\n" +
	"Phone X,Acme,$199.99,,3\n" +
	"Phone X,Acme,$199.99,It arrived on a Tuesday,3\n"

func TestScore(t *testing.T) {
	assert.Greater(t, Score("great value, love it"), 0.5)
	assert.Less(t, Score("terrible and broken"), -0.5)
	assert.Equal(t, 0.0, Score("it arrived on a tuesday"))
	assert.Less(t, Score("not good"), 0.0)
	assert.Greater(t, Score("good!"), Score("good"))
	assert.Greater(t, Score("the battery is not bad"), 0.0)
	assert.Greater(t, Score("GREAT phone"), Score("great phone"))

	for _, text := range []string{"best best best best best best best", "worst worst worst worst worst"} {
		s := Score(text)
		assert.LessOrEqual(t, s, 1.0)
		assert.GreaterOrEqual(t, s, -1.0)
	}
}

func TestClassifyAndTrend(t *testing.T) {
	assert.Equal(t, LabelPositive, Classify(0.06))
	assert.Equal(t, LabelNeutral, Classify(0.05))
	assert.Equal(t, LabelNegative, Classify(-0.06))

	assert.Equal(t, TrendUp, TrendFor(0.51))
	assert.Equal(t, TrendStable, TrendFor(0.5))
	assert.Equal(t, TrendStable, TrendFor(-0.2))
	assert.Equal(t, TrendDown, TrendFor(-0.21))
}

func TestCommonPhrasesOrder(t *testing.T) {
	got := CommonPhrases([]string{
		"Battery life is great",
		"great camera, weak battery",
		"The camera is great",
	}, 3)
	assert.Equal(t, []Phrase{{"great", 3}, {"battery", 2}, {"camera", 2}}, got)
}

func TestComplaintCategories(t *testing.T) {
	got := ComplaintCategories([]string{"Screen is dim and battery dies", "Charging is slow, charge port broke"})
	assert.Equal(t, 1, got["screen"])
	assert.Equal(t, 2, got["battery"])
	assert.Equal(t, 1, got["performance"])
	assert.Equal(t, 0, got["camera"])
}

func TestAnalyze(t *testing.T) {
	a := NewAnalyzer(2, zap.NewNop())
	res, err := a.Analyze(context.Background(), strings.NewReader(reviewsCSV))
	require.NoError(t, err)

	p := res.Payload
	assert.Equal(t, 3, res.Reviews)
	assert.True(t, p.Valid())
	assert.Equal(t, ProductInfo{Name: "Phone X", Brand: "Acme", Price: "199.99"}, *p.ProductInfo)
	assert.Equal(t, []float64{1, 1, 1}, p.ChartData.Distribution.Values)
	assert.Equal(t, []float64{3}, p.ChartData.Counts.Values)
	assert.Equal(t, TrendFor(*p.SentimentScore), p.SalesTrend.Trend)
	assert.Contains(t, p.SalesTrend.Message, "based on sentiment.")
	assert.Equal(t, 1, p.ComplaintCategories["screen"])

	require.NotNil(t, p.RatingStats)
	assert.InDelta(t, 3.0, p.RatingStats.AverageRating, 1e-9)
	assert.Equal(t, 1, p.RatingStats.RatingDistribution["5"])

	assert.Contains(t, res.ReviewsText, "Great phone")
	assert.NotContains(t, res.ReviewsText, "  ")
}

func TestAnalyzeMissingReviews(t *testing.T) {
	a := NewAnalyzer(1, zap.NewNop())
	_, err := a.Analyze(context.Background(), strings.NewReader("Title,Rating\nx,5\n"))

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"Title", "Rating"}, missing.Available)
	assert.Equal(t, "Missing required columns: Reviews", err.Error())

	_, err = a.Analyze(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyCSV)
}

func TestReviewsTextIsBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString("Reviews\n")
	for i := 0; i < 400; i++ {
		b.WriteString("great phone with a very long review body\n")
	}
	res, err := NewAnalyzer(4, nil).Analyze(context.Background(), strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.Len(t, res.ReviewsText, MaxContextChars)
}

func TestPayloadDecode(t *testing.T) {
	p, err := Decode([]byte(`{"chart_data":{},"product_info":{"Product Name":"X","Price":12.5},"common_phrases":[["a",2]]}`))
	require.NoError(t, err)
	assert.True(t, p.Valid())
	assert.Nil(t, p.Success)
	assert.Equal(t, ProductInfo{Name: "X", Brand: "N/A", Price: "12.5"}, p.ProductInfo.WithDefaults())
	assert.Equal(t, []Phrase{{"a", 2}}, p.CommonPhrases)

	_, err = Decode([]byte(`{"common_phrases":[["a"]]}`))
	assert.Error(t, err)

	p, err = Decode([]byte(`{"sentiment_score":0.1}`))
	require.NoError(t, err)
	assert.False(t, p.Valid())
}

func TestPhraseEncodesAsPair(t *testing.T) {
	data, err := json.Marshal([]Phrase{{"great value", 12}})
	require.NoError(t, err)
	assert.JSONEq(t, `[["great value",12]]`, string(data))
}
