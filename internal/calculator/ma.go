package calculator

import (
	"math"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// Tracker maintains a simple moving average over the last window values.
// Push and Value are O(1).
type Tracker struct {
	window int
	buf    []float64
	next   int
	count  int
	sum    float64
}

// NewTracker creates a Tracker. A window below 1 is treated as 1.
func NewTracker(window int) *Tracker {
	if window < 1 {
		window = 1
	}
	return &Tracker{window: window, buf: make([]float64, window)}
}

// Push adds the next value, evicting the oldest once the window is full.
func (t *Tracker) Push(v float64) {
	if t.count == t.window {
		t.sum -= t.buf[t.next]
	} else {
		t.count++
	}
	t.buf[t.next] = v
	t.sum += v
	t.next = (t.next + 1) % t.window
}

// Value returns the current average, or false until window values were pushed.
func (t *Tracker) Value() (float64, bool) {
	if t.count < t.window {
		return math.NaN(), false
	}
	return t.sum / float64(t.window), true
}

// RollingAverage computes the trailing simple moving average of close for every bar.
// The first window-1 entries are NaN.
func RollingAverage(series *model.BarSeries, window int) []float64 {
	out := make([]float64, series.Len())
	t := NewTracker(window)
	for i := range out {
		t.Push(series.At(i).Close)
		out[i], _ = t.Value()
	}
	return out
}

// LastAverage returns the moving average ending at the most recent bar.
func LastAverage(series *model.BarSeries, window int) (float64, bool) {
	if series.Len() < window {
		return math.NaN(), false
	}
	t := NewTracker(window)
	for i := series.Len() - window; i < series.Len(); i++ {
		t.Push(series.At(i).Close)
	}
	return t.Value()
}
