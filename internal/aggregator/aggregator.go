// Package aggregator runs the strategy engine over every symbol of every group
// and assembles one ordered report.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/collector"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/strategy"
)

// ProgressCallback is called after each symbol finishes.
type ProgressCallback func(done, total int)

// Aggregator fans symbols out to a bounded worker pool.
type Aggregator struct {
	fetcher      collector.Fetcher
	engine       *strategy.Engine
	workers      int
	fetchTimeout time.Duration
	progressFunc ProgressCallback
	now          func() time.Time
}

// New creates an aggregator. workers below 1 run sequentially; a zero
// fetchTimeout leaves fetches bounded only by ctx.
func New(f collector.Fetcher, engine *strategy.Engine, workers int, fetchTimeout time.Duration) *Aggregator {
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		fetcher:      f,
		engine:       engine,
		workers:      workers,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

func (a *Aggregator) SetProgressCallback(fn ProgressCallback) {
	a.progressFunc = fn
}

type job struct {
	slot   int
	group  model.Group
	symbol string
}

type outcome struct {
	signals []model.Signal
	skips   []model.Skip
}

// fetchOnce shares one fetch between groups listing the same symbol.
type fetchOnce struct {
	once   sync.Once
	series *model.BarSeries
	err    error
}

// Run evaluates every (group, symbol) pair. Failures for one symbol are
// recorded as skips and never abort the run. Signals and skips come out in
// group, then symbol, then rule order whatever the worker count.
func (a *Aggregator) Run(ctx context.Context, trigger model.TriggerType, groups []model.Group) *model.Report {
	report := &model.Report{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: a.now(),
	}

	var jobs []job
	for _, g := range groups {
		for _, sym := range g.Symbols {
			jobs = append(jobs, job{slot: len(jobs), group: g, symbol: sym})
		}
	}
	total := len(jobs)
	slots := make([]outcome, total)

	fetches := make(map[string]*fetchOnce)
	for _, j := range jobs {
		if _, ok := fetches[j.symbol]; !ok {
			fetches[j.symbol] = &fetchOnce{}
		}
	}

	jobChan := make(chan job, total)
	for _, j := range jobs {
		jobChan <- j
	}
	close(jobChan)

	var done int64
	var wg sync.WaitGroup
	for i := 0; i < a.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobChan {
				if ctx.Err() != nil {
					slots[j.slot] = outcome{skips: []model.Skip{symbolSkip(j, model.SkipDataUnavailable, "run cancelled")}}
				} else {
					slots[j.slot] = a.evaluate(ctx, j, fetches[j.symbol])
				}

				count := atomic.AddInt64(&done, 1)
				if a.progressFunc != nil {
					a.progressFunc(int(count), total)
				}
			}
		}()
	}
	wg.Wait()

	for _, o := range slots {
		report.Signals = append(report.Signals, o.signals...)
		report.Skips = append(report.Skips, o.skips...)
	}
	report.Evaluated = total
	report.FinishedAt = a.now()

	log.Printf("[INFO] run %s: %d symbols, %d signals, %d skipped (%d invalid) in %s",
		report.RunID, total, report.Count(), len(report.Skips), report.InvalidCount(),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report
}

func (a *Aggregator) evaluate(ctx context.Context, j job, f *fetchOnce) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] panic evaluating %s/%s: %v\n%s", j.group.Name, j.symbol, r, debug.Stack())
			out = outcome{skips: []model.Skip{symbolSkip(j, model.SkipInternal, fmt.Sprint(r))}}
		}
	}()

	f.once.Do(func() { f.series, f.err = a.fetch(ctx, j.symbol) })
	if f.err != nil {
		kind := model.SkipDataUnavailable
		var invalid *model.InvalidSeriesError
		if errors.As(f.err, &invalid) {
			kind = model.SkipInvalidInput
		}
		skip := symbolSkip(j, kind, f.err.Error())
		var fe *collector.FetchError
		if errors.As(f.err, &fe) && fe.Retryable {
			skip.Retryable = true
			log.Printf("[WARN] %s/%s skipped after transient %s failure: %v", j.group.Name, j.symbol, fe.Source, f.err)
		} else {
			log.Printf("[WARN] %s/%s skipped: %v", j.group.Name, j.symbol, f.err)
		}
		return outcome{skips: []model.Skip{skip}}
	}

	signals, skips := a.engine.Evaluate(j.group.Name, j.group.Rules, f.series, a.now())
	return outcome{signals: signals, skips: skips}
}

func (a *Aggregator) fetch(ctx context.Context, symbol string) (*model.BarSeries, error) {
	if a.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
	}

	bars, err := a.fetcher.FetchDailyBars(ctx, symbol, a.engine.Config().Lookback())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch timed out after %s: %w", a.fetchTimeout, model.ErrDataUnavailable)
		}
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars returned: %w", model.ErrDataUnavailable)
	}
	return model.NewBarSeries(symbol, bars)
}

func symbolSkip(j job, kind model.SkipKind, reason string) model.Skip {
	return model.Skip{Symbol: j.symbol, Group: j.group.Name, Kind: kind, Reason: reason}
}
