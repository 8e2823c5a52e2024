package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// RESTFetcher implements Fetcher against a generic JSON bars endpoint:
//
//	GET {BaseURL}/api/v1/bars/daily?symbol=X&limit=N
//	[{"timestamp": 1700000000, "open": 1.0, "close": 1.1}, ...]
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTFetcher {
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, bars int) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", fmt.Sprint(bars))
	endpoint := f.BaseURL + "/api/v1/bars/daily?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: err}
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: err, Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			Source:    f.Name(),
			Symbol:    symbol,
			Err:       fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body)),
			Retryable: retryableStatus(resp.StatusCode),
		}
	}

	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: fmt.Errorf("decode bars: %w", err)}
	}
	out := make([]model.Bar, 0, len(raw))
	for _, rb := range raw {
		out = append(out, model.Bar{
			Date:  model.DateOf(time.Unix(rb.Timestamp, 0).UTC()),
			Open:  rb.Open,
			Close: rb.Close,
		})
	}
	return normalize(out, bars), nil
}
