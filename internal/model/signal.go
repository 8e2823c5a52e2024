package model

import "time"

// TriggerType indicates what started a run.
type TriggerType string

const (
	TriggerManual   TriggerType = "MANUAL"
	TriggerSchedule TriggerType = "SCHEDULE"
	TriggerOther    TriggerType = "OTHER"
)

// RuleName identifies an evaluation rule.
type RuleName string

const (
	RuleBreakout      RuleName = "BREAKOUT"       // V20
	RuleMeanReversion RuleName = "MEAN_REVERSION" // H45
)

// Group is a named bucket of symbols sharing the same rule set.
type Group struct {
	Name    string     `yaml:"name" json:"name"`
	Symbols []string   `yaml:"symbols" json:"symbols"`
	Rules   []RuleName `yaml:"rules" json:"rules"`
}

// Uses reports whether the group is configured for rule.
func (g Group) Uses(rule RuleName) bool {
	for _, r := range g.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

// Pattern is a detected breakout candidate.
type Pattern struct {
	AnchorDate  time.Time `json:"anchor_date"`
	AnchorPrice float64   `json:"anchor_price"`
	PeakDate    time.Time `json:"peak_date"`
	PeakPrice   float64   `json:"peak_price"`
	MovePercent float64   `json:"move_percent"`
	StartIndex  int       `json:"start_index"`
	EndIndex    int       `json:"end_index"`
}

// Signal is an activation record produced by an evaluator.
type Signal struct {
	Symbol       string    `json:"symbol"`
	Group        string    `json:"group"`
	Rule         RuleName  `json:"rule"`
	CurrentPrice float64   `json:"current_price"`
	Timestamp    time.Time `json:"timestamp"`

	// BREAKOUT payload
	Pattern     *Pattern `json:"pattern,omitempty"`
	DiffPercent float64  `json:"diff_percent,omitempty"`

	// MEAN_REVERSION payload
	Average     float64 `json:"average,omitempty"`
	DropPercent float64 `json:"drop_percent,omitempty"`
}

// SkipKind classifies why a symbol or rule was not evaluated.
type SkipKind string

const (
	SkipDataUnavailable SkipKind = "DATA_UNAVAILABLE"
	SkipInvalidInput    SkipKind = "INVALID_INPUT"
	SkipInternal        SkipKind = "INTERNAL"
)

// Skip records a symbol (or one rule of a symbol) that could not be evaluated.
// Rule is empty when the whole symbol was skipped. Retryable marks a transient
// provider failure that a later run may not hit.
type Skip struct {
	Symbol    string   `json:"symbol"`
	Group     string   `json:"group"`
	Rule      RuleName `json:"rule,omitempty"`
	Kind      SkipKind `json:"kind"`
	Reason    string   `json:"reason"`
	Retryable bool     `json:"retryable,omitempty"`
}

// Report is the ordered result of one run.
type Report struct {
	RunID      string      `json:"run_id"`
	Trigger    TriggerType `json:"trigger"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Evaluated  int         `json:"evaluated"`
	Signals    []Signal    `json:"signals"`
	Skips      []Skip      `json:"skips"`
}

// Count returns the number of signals.
func (r *Report) Count() int { return len(r.Signals) }

// CountByRule returns the number of signals produced by rule.
func (r *Report) CountByRule(rule RuleName) int {
	n := 0
	for _, s := range r.Signals {
		if s.Rule == rule {
			n++
		}
	}
	return n
}

// InvalidCount returns the number of series excluded as malformed.
func (r *Report) InvalidCount() int {
	n := 0
	for _, s := range r.Skips {
		if s.Kind == SkipInvalidInput {
			n++
		}
	}
	return n
}
