package strategy

import (
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// BreakoutInput carries everything the V20 evaluator looks at.
type BreakoutInput struct {
	Symbol           string
	Group            string
	CurrentPrice     float64
	Patterns         []model.Pattern // chronological, as returned by Scan
	TolerancePercent float64
	At               time.Time
}

// EvaluateBreakout emits at most one BREAKOUT signal: the first pattern whose
// anchor price is within TolerancePercent of the current price. Several
// historical patterns matching at once describe the same opportunity.
func EvaluateBreakout(in BreakoutInput) []model.Signal {
	if !(in.CurrentPrice > 0) {
		return nil
	}
	for i := range in.Patterns {
		p := in.Patterns[i]
		diff := percentOf(in.CurrentPrice, p.AnchorPrice, p.AnchorPrice).Abs()
		if !atMost(diff, in.TolerancePercent) {
			continue
		}
		return []model.Signal{{
			Symbol:       in.Symbol,
			Group:        in.Group,
			Rule:         model.RuleBreakout,
			CurrentPrice: in.CurrentPrice,
			Timestamp:    in.At,
			Pattern:      &p,
			DiffPercent:  diff.InexactFloat64(),
		}}
	}
	return nil
}
