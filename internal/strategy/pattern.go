package strategy

import "github.com/deb4uuu-coder/stock-strategy-alert/internal/model"

// ScanConfig controls breakout pattern detection.
type ScanConfig struct {
	MinMovePercent  float64 // minimum anchor→peak move for a run to qualify
	MaxNonGreenDays int     // consecutive non-green days a run may absorb
	MinBars         int     // shorter series yield no patterns
}

// DefaultScanConfig returns the V20 defaults.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		MinMovePercent:  20,
		MaxNonGreenDays: 0,
		MinBars:         50,
	}
}

// Scan walks the series once and returns every qualifying up-move run in
// chronological order.
//
// A run starts on a green day (close > open) and is anchored at that day's
// open. It continues through green days and absorbs at most MaxNonGreenDays
// consecutive non-green days, which only become members when a later green
// day follows them. The peak is the highest close among members; the earliest
// bar wins a tie. Scanning resumes after the run's last member, so runs
// never overlap.
func Scan(series *model.BarSeries, cfg ScanConfig) []model.Pattern {
	n := series.Len()
	if n == 0 || n < cfg.MinBars {
		return nil
	}

	var patterns []model.Pattern
	for i := 0; i < n; {
		if !series.At(i).Green() {
			i++
			continue
		}
		end, peakIdx := extendRun(series, i, cfg.MaxNonGreenDays)

		anchor := series.At(i)
		peak := series.At(peakIdx)
		move := percentOf(peak.Close, anchor.Open, anchor.Open)
		if atLeast(move, cfg.MinMovePercent) {
			patterns = append(patterns, model.Pattern{
				AnchorDate:  anchor.Date,
				AnchorPrice: anchor.Open,
				PeakDate:    peak.Date,
				PeakPrice:   peak.Close,
				MovePercent: move.InexactFloat64(),
				StartIndex:  i,
				EndIndex:    end,
			})
		}
		i = end + 1
	}
	return patterns
}

// extendRun returns the index of the last member of the run starting at
// start, and the index of its highest close.
func extendRun(series *model.BarSeries, start, maxNonGreen int) (end, peak int) {
	end, peak = start, start
	gap := 0
	for j := start + 1; j < series.Len(); j++ {
		if !series.At(j).Green() {
			gap++
			if gap > maxNonGreen {
				break
			}
			continue
		}
		for k := end + 1; k <= j; k++ {
			if series.At(k).Close > series.At(peak).Close {
				peak = k
			}
		}
		end = j
		gap = 0
	}
	return end, peak
}
