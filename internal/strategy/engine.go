package strategy

import (
	"fmt"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/calculator"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// Config holds every numeric knob of both rules.
type Config struct {
	Scan                 ScanConfig
	TolerancePercent     float64
	DropThresholdPercent float64
	MovingAverageWindow  int
	PatternLookbackBars  int // 0 scans the whole series
}

// DefaultConfig returns the V20/H45 defaults.
func DefaultConfig() Config {
	return Config{
		Scan:                 DefaultScanConfig(),
		TolerancePercent:     3,
		DropThresholdPercent: 14,
		MovingAverageWindow:  200,
		PatternLookbackBars:  1008,
	}
}

// Lookback returns how many bars a fetch must cover to serve both rules.
func (c Config) Lookback() int {
	if c.PatternLookbackBars > c.MovingAverageWindow {
		return c.PatternLookbackBars
	}
	return c.MovingAverageWindow
}

// Engine evaluates one symbol's series against the rules of its group.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

func (e *Engine) Config() Config { return e.cfg }

// Evaluate runs the group's rules over series. The current price is the last
// close. Rules lacking history are reported as skips, never as errors.
func (e *Engine) Evaluate(group string, rules []model.RuleName, series *model.BarSeries, at time.Time) ([]model.Signal, []model.Skip) {
	g := model.Group{Name: group, Rules: rules}
	symbol := series.Symbol()

	last, ok := series.Last()
	if !ok {
		return nil, []model.Skip{{Symbol: symbol, Group: group, Kind: model.SkipDataUnavailable, Reason: "no bars"}}
	}

	var signals []model.Signal
	var skips []model.Skip

	if g.Uses(model.RuleBreakout) {
		window := series
		if e.cfg.PatternLookbackBars > 0 {
			window = series.Tail(e.cfg.PatternLookbackBars)
		}
		if window.Len() < e.cfg.Scan.MinBars {
			skips = append(skips, model.Skip{
				Symbol: symbol, Group: group, Rule: model.RuleBreakout,
				Kind:   model.SkipDataUnavailable,
				Reason: fmt.Sprintf("%d bars, need %d", window.Len(), e.cfg.Scan.MinBars),
			})
		} else {
			signals = append(signals, EvaluateBreakout(BreakoutInput{
				Symbol:           symbol,
				Group:            group,
				CurrentPrice:     last.Close,
				Patterns:         Scan(window, e.cfg.Scan),
				TolerancePercent: e.cfg.TolerancePercent,
				At:               at,
			})...)
		}
	}

	if g.Uses(model.RuleMeanReversion) {
		avg, ok := calculator.LastAverage(series, e.cfg.MovingAverageWindow)
		if !ok {
			skips = append(skips, model.Skip{
				Symbol: symbol, Group: group, Rule: model.RuleMeanReversion,
				Kind:   model.SkipDataUnavailable,
				Reason: fmt.Sprintf("%d bars, need %d", series.Len(), e.cfg.MovingAverageWindow),
			})
		} else {
			signals = append(signals, EvaluateMeanReversion(ReversionInput{
				Symbol:               symbol,
				Group:                group,
				CurrentPrice:         last.Close,
				Average:              avg,
				DropThresholdPercent: e.cfg.DropThresholdPercent,
				At:                   at,
			})...)
		}
	}

	return signals, skips
}
