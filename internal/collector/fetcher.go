package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// Fetcher defines the interface for fetching daily price history.
// Bars are returned oldest first, at most bars of them.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, bars int) ([]model.Bar, error)
	Name() string
}

// FetchError wraps a provider failure with its source.
type FetchError struct {
	Source    string
	Symbol    string
	Err       error
	Retryable bool
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// retryableStatus reports whether an HTTP status is worth retrying later.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// normalize sorts bars by date, drops same-day duplicates (keeping the later
// entry) and trims to the most recent n.
func normalize(bars []model.Bar, n int) []model.Bar {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].Date.Equal(b.Date) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
