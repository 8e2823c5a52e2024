package strategy

import (
	"math"
	"time"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// ReversionInput carries everything the H45 evaluator looks at.
// Average is NaN when there was not enough history.
type ReversionInput struct {
	Symbol               string
	Group                string
	CurrentPrice         float64
	Average              float64
	DropThresholdPercent float64
	At                   time.Time
}

// EvaluateMeanReversion emits one MEAN_REVERSION signal when the current
// price sits at least DropThresholdPercent below the moving average.
func EvaluateMeanReversion(in ReversionInput) []model.Signal {
	if math.IsNaN(in.Average) || in.Average <= 0 || !(in.CurrentPrice > 0) {
		return nil
	}
	drop := percentOf(in.Average, in.CurrentPrice, in.Average)
	if !atLeast(drop, in.DropThresholdPercent) {
		return nil
	}
	return []model.Signal{{
		Symbol:       in.Symbol,
		Group:        in.Group,
		Rule:         model.RuleMeanReversion,
		CurrentPrice: in.CurrentPrice,
		Timestamp:    in.At,
		Average:      in.Average,
		DropPercent:  drop.InexactFloat64(),
	}}
}
