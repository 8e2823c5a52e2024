// Package symbols loads the watchlist layout: one CSV column per group.
package symbols

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deb4uuu-coder/stock-strategy-alert/internal/model"
)

// DefaultRules maps the stock layout columns to their rule.
var DefaultRules = map[string][]model.RuleName{
	"V40":      {model.RuleBreakout},
	"V40_NEXT": {model.RuleBreakout},
	"H45":      {model.RuleMeanReversion},
}

// LoadFile reads a layout CSV. See Parse.
func LoadFile(path string, rules map[string][]model.RuleName) ([]model.Group, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbols file: %w", err)
	}
	defer f.Close()
	groups, err := Parse(f, rules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return groups, nil
}

// Parse reads a CSV whose header names the groups and whose cells are symbols.
// Columns may have different lengths; blank cells are skipped. Symbols are
// trimmed and de-duplicated per group, keeping first occurrence order. Groups
// keep header order. Rules come from rules, falling back to DefaultRules;
// a column with neither is an error.
func Parse(r io.Reader, rules map[string][]model.RuleName) ([]model.Group, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty symbols file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	groups := make([]model.Group, 0, len(header))
	seen := make([]map[string]bool, 0, len(header))
	for col, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			return nil, fmt.Errorf("column %d has no group name", col+1)
		}
		rs, ok := rules[name]
		if !ok {
			rs, ok = DefaultRules[name]
		}
		if !ok {
			return nil, fmt.Errorf("group %s has no rules configured", name)
		}
		groups = append(groups, model.Group{Name: name, Rules: rs})
		seen = append(seen, make(map[string]bool))
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		for col, cell := range rec {
			if col >= len(groups) {
				break
			}
			sym := strings.TrimSpace(cell)
			if sym == "" || seen[col][sym] {
				continue
			}
			seen[col][sym] = true
			groups[col].Symbols = append(groups[col].Symbols, sym)
		}
	}
	return groups, nil
}

// Filter keeps only the named groups, in the given order.
func Filter(groups []model.Group, names []string) ([]model.Group, error) {
	if len(names) == 0 {
		return groups, nil
	}
	out := make([]model.Group, 0, len(names))
	for _, n := range names {
		found := false
		for _, g := range groups {
			if g.Name == n {
				out = append(out, g)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown group %q", n)
		}
	}
	return out, nil
}
