// Package analysis holds the upload endpoint's wire schema and the reference
// review analyzer that produces it.
package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Trend values reported in SalesTrend.
const (
	TrendUp     = "Up"
	TrendDown   = "Down"
	TrendStable = "Stable"
)

// NotAvailable is the placeholder for product fields missing from the data.
const NotAvailable = "N/A"

// Payload is the upload endpoint response. Pointer fields distinguish
// "absent" from zero values so the dashboard can substitute defaults.
type Payload struct {
	Success             *bool          `json:"success,omitempty"`
	SentimentScore      *float64       `json:"sentiment_score,omitempty"`
	SalesTrend          *SalesTrend    `json:"sales_trend,omitempty"`
	ProductInfo         *ProductInfo   `json:"product_info,omitempty"`
	ChartData           *ChartData     `json:"chart_data,omitempty"`
	CommonPhrases       []Phrase       `json:"common_phrases,omitempty"`
	NegativePhrases     []Phrase       `json:"negative_phrases,omitempty"`
	ComplaintCategories map[string]int `json:"complaint_categories,omitempty"`
	RatingStats         *RatingStats   `json:"rating_stats,omitempty"`

	// Raw is the body exactly as received.
	Raw json.RawMessage `json:"-"`
}

// Decode parses an upload response body and keeps the raw bytes.
func Decode(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	p.Raw = append(json.RawMessage(nil), body...)
	return &p, nil
}

// Valid reports whether the payload carries a success flag or chart data.
func (p *Payload) Valid() bool {
	if p == nil {
		return false
	}
	return (p.Success != nil && *p.Success) || p.ChartData != nil
}

type SalesTrend struct {
	Trend        string  `json:"trend"`
	AvgSentiment float64 `json:"avg_sentiment"`
	Message      string  `json:"message"`
}

// DefaultSalesTrend is stored when the response has no sales_trend.
func DefaultSalesTrend() SalesTrend {
	return SalesTrend{Trend: TrendStable, AvgSentiment: 0, Message: "No data"}
}

// ProductInfo uses the CSV column names as JSON keys. Price may arrive as a
// number and is kept as text.
type ProductInfo struct {
	Name  string
	Brand string
	Price string
}

type productInfoWire struct {
	Name  *string          `json:"Product Name,omitempty"`
	Brand *string          `json:"Brand Name,omitempty"`
	Price *json.RawMessage `json:"Price,omitempty"`
}

func (p ProductInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"Product Name": p.Name,
		"Brand Name":   p.Brand,
		"Price":        p.Price,
	})
}

func (p *ProductInfo) UnmarshalJSON(data []byte) error {
	var w productInfoWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Name != nil {
		p.Name = *w.Name
	}
	if w.Brand != nil {
		p.Brand = *w.Brand
	}
	if w.Price != nil {
		var s string
		if err := json.Unmarshal(*w.Price, &s); err == nil {
			p.Price = s
		} else {
			var f float64
			if err := json.Unmarshal(*w.Price, &f); err != nil {
				return fmt.Errorf("product price: %w", err)
			}
			p.Price = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return nil
}

// WithDefaults fills empty fields with NotAvailable.
func (p ProductInfo) WithDefaults() ProductInfo {
	if p.Name == "" {
		p.Name = NotAvailable
	}
	if p.Brand == "" {
		p.Brand = NotAvailable
	}
	if p.Price == "" {
		p.Price = NotAvailable
	}
	return p
}

// Series is one chart's labels and numbers. The sentiment series reports
// means, the others report values.
type Series struct {
	Labels []string  `json:"labels"`
	Means  []float64 `json:"means,omitempty"`
	Values []float64 `json:"values,omitempty"`
}

// Points returns the numeric data of the series, preferring means.
func (s *Series) Points() []float64 {
	if s == nil {
		return nil
	}
	if len(s.Means) > 0 {
		return s.Means
	}
	return s.Values
}

type ChartData struct {
	Sentiment    *Series `json:"sentiment,omitempty"`
	Distribution *Series `json:"distribution,omitempty"`
	Counts       *Series `json:"counts,omitempty"`
}

// Phrase is a (phrase, count) pair encoded as a two element JSON array.
type Phrase struct {
	Text  string
	Count int
}

func (p Phrase) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Text, p.Count})
}

func (p *Phrase) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("phrase must be a [phrase, count] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("phrase must be a [phrase, count] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Text); err != nil {
		return fmt.Errorf("phrase text: %w", err)
	}
	var count float64
	if err := json.Unmarshal(pair[1], &count); err != nil {
		return fmt.Errorf("phrase count: %w", err)
	}
	p.Count = int(count)
	return nil
}

type RatingStats struct {
	AverageRating      float64        `json:"average_rating"`
	RatingDistribution map[string]int `json:"rating_distribution"`
	SentimentMean      float64        `json:"sentiment_mean"`
	ComparisonScore    float64        `json:"comparison_score"`
}
