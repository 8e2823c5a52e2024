package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// fixed renders v rounded half away from zero to 2 decimals.
func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatReport renders a run as the plain-text alert body: a header with the
// run time in loc and the counts, one block per signal, then the skipped
// symbols with their reasons.
func FormatReport(r *model.Report, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s | %s\n", r.StartedAt.In(loc).Format("2006-01-02 15:04 MST"), r.RunID)
	fmt.Fprintf(&b, "Trigger: %s\n", r.Trigger)
	fmt.Fprintf(&b, "Symbols evaluated: %d\n", r.Evaluated)
	fmt.Fprintf(&b, "Signals: %d (BREAKOUT %d, MEAN_REVERSION %d)\n",
		r.Count(), r.CountByRule(model.RuleBreakout), r.CountByRule(model.RuleMeanReversion))
	fmt.Fprintf(&b, "Skipped: %d (invalid %d)\n", len(r.Skips), r.InvalidCount())

	for _, s := range r.Signals {
		b.WriteString("\n")
		b.WriteString(FormatSignal(s))
	}
	if skips := FormatSkips(r); skips != "" {
		b.WriteString("\n")
		b.WriteString(skips)
	}
	return b.String()
}

// FormatSignal renders one signal block.
func FormatSignal(s model.Signal) string {
	var b strings.Builder
	switch s.Rule {
	case model.RuleBreakout:
		fmt.Fprintf(&b, "🟢 %s\n", s.Symbol)
		fmt.Fprintf(&b, "Group: %s\n", s.Group)
		b.WriteString("Strategy: BREAKOUT (V20)\n")
		if p := s.Pattern; p != nil {
			fmt.Fprintf(&b, "Pattern Start: %s\n", p.AnchorDate.Format("2006-01-02"))
			fmt.Fprintf(&b, "Pattern Peak: %s\n", p.PeakDate.Format("2006-01-02"))
			fmt.Fprintf(&b, "Pattern Price: %s\n", fixed(p.AnchorPrice))
			fmt.Fprintf(&b, "Peak Price: %s (+%s%%)\n", fixed(p.PeakPrice), fixed(p.MovePercent))
		}
		fmt.Fprintf(&b, "Current Price: %s\n", fixed(s.CurrentPrice))
		fmt.Fprintf(&b, "Difference: %s%%\n", fixed(s.DiffPercent))
	case model.RuleMeanReversion:
		fmt.Fprintf(&b, "🔵 %s\n", s.Symbol)
		fmt.Fprintf(&b, "Group: %s\n", s.Group)
		b.WriteString("Strategy: MEAN_REVERSION (H45)\n")
		fmt.Fprintf(&b, "Moving Average: %s\n", fixed(s.Average))
		fmt.Fprintf(&b, "Current Price: %s\n", fixed(s.CurrentPrice))
		fmt.Fprintf(&b, "Drop from MA: %s%%\n", fixed(s.DropPercent))
	default:
		fmt.Fprintf(&b, "%s %s/%s at %s\n", s.Rule, s.Group, s.Symbol, fixed(s.CurrentPrice))
	}
	return b.String()
}

// FormatSkips lists skipped symbols, one per line.
func FormatSkips(r *model.Report) string {
	if len(r.Skips) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Skipped:\n")
	for _, s := range r.Skips {
		target := s.Symbol
		if s.Rule != "" {
			target += " " + string(s.Rule)
		}
		reason := s.Reason
		if s.Retryable {
			reason += " (retryable)"
		}
		fmt.Fprintf(&b, "  %s/%s [%s] %s\n", s.Group, target, s.Kind, reason)
	}
	return b.String()
}

// FormatStatus answers the /status command.
func FormatStatus(last *model.Report, next time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString("📈 Stock Strategy Alert\n")
	if last == nil {
		b.WriteString("No run yet.\n")
	} else {
		fmt.Fprintf(&b, "Last run: %s (%s)\n", last.FinishedAt.In(loc).Format("2006-01-02 15:04 MST"), last.Trigger)
		fmt.Fprintf(&b, "Signals: %d | Skipped: %d | Evaluated: %d\n", last.Count(), len(last.Skips), last.Evaluated)
	}
	if !next.IsZero() {
		fmt.Fprintf(&b, "Next scheduled scan: %s\n", next.In(loc).Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}
