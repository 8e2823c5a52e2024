package model

import (
	"math"
	"time"
)

// Bar represents a single trading day.
type Bar struct {
	Date  time.Time `json:"date"`
	Open  float64   `json:"open"`
	Close float64   `json:"close"`
}

// Green reports whether the bar closed above its open.
func (b Bar) Green() bool { return b.Close > b.Open }

// DateOf truncates t to a timezone-naive calendar date (midnight UTC of t's local day).
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BarSeries holds the normalized daily history for one symbol.
// It is immutable once built; use NewBarSeries to construct one.
type BarSeries struct {
	symbol string
	bars   []Bar
}

// NewBarSeries validates and copies bars into a series.
// Dates must be strictly increasing and prices positive.
func NewBarSeries(symbol string, bars []Bar) (*BarSeries, error) {
	out := make([]Bar, len(bars))
	for i, b := range bars {
		if math.IsNaN(b.Open) || math.IsNaN(b.Close) || b.Open <= 0 || b.Close <= 0 {
			return nil, &InvalidSeriesError{Symbol: symbol, Index: i, Reason: "non-positive price"}
		}
		b.Date = DateOf(b.Date)
		if i > 0 && !b.Date.After(out[i-1].Date) {
			return nil, &InvalidSeriesError{Symbol: symbol, Index: i, Reason: "dates not strictly increasing"}
		}
		out[i] = b
	}
	return &BarSeries{symbol: symbol, bars: out}, nil
}

func (s *BarSeries) Symbol() string {
	if s == nil {
		return ""
	}
	return s.symbol
}

// Len returns the number of bars. A nil series has length 0.
func (s *BarSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

// At returns the i-th bar.
func (s *BarSeries) At(i int) Bar { return s.bars[i] }

// Last returns the most recent bar, or false if the series is empty.
func (s *BarSeries) Last() (Bar, bool) {
	if s.Len() == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Tail returns a series over the most recent n bars.
func (s *BarSeries) Tail(n int) *BarSeries {
	if n >= s.Len() {
		return s
	}
	if n < 0 {
		n = 0
	}
	return &BarSeries{symbol: s.symbol, bars: s.bars[len(s.bars)-n:]}
}
