package collector

import (
	"context"
	"sync"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Symbols without an entry get a generated gently rising series of Default
// bars (or none when Default is 0).
type MockFetcher struct {
	Bars    map[string][]model.Bar
	Errors  map[string]error
	Delay   time.Duration // per call; honours ctx cancellation
	Default int
	Base    float64

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol string, bars int) ([]model.Bar, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, &FetchError{Source: m.Name(), Symbol: symbol, Err: ctx.Err()}
		}
	}
	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	if data, ok := m.Bars[symbol]; ok {
		out := append([]model.Bar(nil), data...)
		if bars > 0 && len(out) > bars {
			out = out[len(out)-bars:]
		}
		return out, nil
	}
	n := m.Default
	if bars > 0 && n > bars {
		n = bars
	}
	return GenerateBars(m.Base, n, time.Now()), nil
}

// Calls returns how many times symbol was fetched.
func (m *MockFetcher) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// GenerateBars builds count daily bars ending the day before end.
func GenerateBars(basePrice float64, count int, end time.Time) []model.Bar {
	if basePrice <= 0 {
		basePrice = 100
	}
	last := model.DateOf(end)
	bars := make([]model.Bar, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Bar{
			Date:  last.AddDate(0, 0, -(count - i)),
			Open:  p * 0.999,
			Close: p,
		}
	}
	return bars
}
