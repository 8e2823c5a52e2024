package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
// Prices are split/dividend adjusted when the response carries adjclose.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	Limiter   *rate.Limiter
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a Yahoo fetcher allowing rps requests per second.
func NewYahooFetcher(proxyURL string, timeout time.Duration, rps float64) *YahooFetcher {
	if rps <= 0 {
		rps = 2
	}
	return &YahooFetcher{
		BaseURL:   yahooBaseURL,
		Client:    newHTTPClient(proxyURL, timeout),
		Limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		SymbolMap: map[string]string{},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				ExchangeTimezoneName string `json:"exchangeTimezoneName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooRange picks the smallest chart range covering n trading days.
func yahooRange(n int) string {
	switch {
	case n <= 20:
		return "1mo"
	case n <= 60:
		return "3mo"
	case n <= 120:
		return "6mo"
	case n <= 250:
		return "1y"
	case n <= 500:
		return "2y"
	case n <= 1250:
		return "5y"
	default:
		return "10y"
	}
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, bars int) ([]model.Bar, error) {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: err}
		}
	}

	base := f.BaseURL
	if base == "" {
		base = yahooBaseURL
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s&events=split%%2Cdiv",
		base, url.PathEscape(f.yahooSymbol(symbol)), yahooRange(bars))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: err, Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: fmt.Errorf("read body: %w", err), Retryable: true}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: model.ErrDataUnavailable}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Source:    f.Name(),
			Symbol:    symbol,
			Err:       fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200)),
			Retryable: retryableStatus(resp.StatusCode),
		}
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: fmt.Errorf("decode: %w", err)}
	}
	if chart.Chart.Error != nil {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: errors.New(chart.Chart.Error.Description)}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &FetchError{Source: f.Name(), Symbol: symbol, Err: model.ErrDataUnavailable}
	}

	result := chart.Chart.Result[0]
	loc := time.UTC
	if result.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	out := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, c := at(quote.Open, i), at(quote.Close, i)
		if o <= 0 || c <= 0 {
			continue // null bars (holidays, halted sessions)
		}
		if a := at(adj, i); a > 0 {
			o *= a / c
			c = a
		}
		out = append(out, model.Bar{
			Date:  model.DateOf(time.Unix(ts, 0).In(loc)),
			Open:  o,
			Close: c,
		})
	}
	return normalize(out, bars), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
