// Package store caches daily bars so repeated scans on the same day do not
// hit the price provider again.
package store

import (
	"context"
	"log"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/collector"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// BarCache is the persistence behind CachingFetcher.
type BarCache interface {
	Load(symbol string, requested int, day time.Time) ([]model.Bar, bool, error)
	Save(symbol, source string, requested int, bars []model.Bar, day time.Time) error
	Close() error
}

// CachingFetcher serves bars fetched earlier the same day from a BarCache and
// falls through to the wrapped Fetcher otherwise. Cache failures are logged,
// never returned.
type CachingFetcher struct {
	Fetcher collector.Fetcher
	Cache   BarCache
	Now     func() time.Time
}

func NewCachingFetcher(f collector.Fetcher, c BarCache) *CachingFetcher {
	return &CachingFetcher{Fetcher: f, Cache: c, Now: time.Now}
}

func (c *CachingFetcher) Name() string { return c.Fetcher.Name() + "+cache" }

func (c *CachingFetcher) FetchDailyBars(ctx context.Context, symbol string, bars int) ([]model.Bar, error) {
	day := model.DateOf(c.Now())

	cached, ok, err := c.Cache.Load(symbol, bars, day)
	if err != nil {
		log.Printf("[WARN] bar cache load %s: %v", symbol, err)
	}
	if ok && len(cached) > 0 {
		return cached, nil
	}

	fresh, err := c.Fetcher.FetchDailyBars(ctx, symbol, bars)
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		if err := c.Cache.Save(symbol, c.Fetcher.Name(), bars, fresh, day); err != nil {
			log.Printf("[WARN] bar cache save %s: %v", symbol, err)
		}
	}
	return fresh, nil
}
