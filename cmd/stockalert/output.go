package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
	"github.com/deb4uuu-coder/stock-strategy-alert/internal/notifier"
)

func writeReport(w io.Writer, format string, r *model.Report, loc *time.Location) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "text":
		_, err := io.WriteString(w, notifier.FormatReport(r, loc))
		return err
	case "table", "":
		return writeTables(w, r)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeTables(w io.Writer, r *model.Report) error {
	fmt.Fprintf(w, "Run %s (%s): %d evaluated, %d signals, %d skipped\n\n",
		r.RunID, r.Trigger, r.Evaluated, r.Count(), len(r.Skips))

	if r.Count() == 0 {
		fmt.Fprintln(w, "No signals found.")
	} else {
		table := tablewriter.NewTable(w,
			tablewriter.WithHeader([]string{"Group", "Symbol", "Rule", "Price", "Reference", "Move", "Detail"}),
		)
		for _, s := range r.Signals {
			table.Append(signalRow(s))
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	if len(r.Skips) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Group", "Symbol", "Rule", "Kind", "Reason"}),
	)
	for _, s := range r.Skips {
		rule := string(s.Rule)
		if rule == "" {
			rule = "-"
		}
		table.Append([]string{s.Group, s.Symbol, rule, string(s.Kind), s.Reason})
	}
	return table.Render()
}

func signalRow(s model.Signal) []string {
	switch s.Rule {
	case model.RuleBreakout:
		p := s.Pattern
		if p == nil {
			break
		}
		return []string{
			s.Group, s.Symbol, string(s.Rule),
			fmt.Sprintf("%.2f", s.CurrentPrice),
			fmt.Sprintf("%.2f", p.AnchorPrice),
			fmt.Sprintf("%+.2f%%", signedDiff(s.CurrentPrice, p.AnchorPrice)),
			fmt.Sprintf("%s -> %s peak %.2f (+%.2f%%)",
				p.AnchorDate.Format("2006-01-02"), p.PeakDate.Format("2006-01-02"), p.PeakPrice, p.MovePercent),
		}
	case model.RuleMeanReversion:
		return []string{
			s.Group, s.Symbol, string(s.Rule),
			fmt.Sprintf("%.2f", s.CurrentPrice),
			fmt.Sprintf("%.2f", s.Average),
			fmt.Sprintf("-%.2f%%", s.DropPercent),
			"below moving average",
		}
	}
	return []string{s.Group, s.Symbol, string(s.Rule), fmt.Sprintf("%.2f", s.CurrentPrice), "", "", ""}
}

// signedDiff is the move from the pattern anchor to the current price.
// Signal.DiffPercent holds its absolute value.
func signedDiff(current, anchor float64) float64 {
	return decimal.NewFromFloat(current).Sub(decimal.NewFromFloat(anchor)).
		Mul(decimal.NewFromInt(100)).Div(decimal.NewFromFloat(anchor)).InexactFloat64()
}
