package model

import (
	"errors"
	"fmt"
)

// ErrDataUnavailable marks a symbol or rule that had no data, or not enough of it.
var ErrDataUnavailable = errors.New("data unavailable")

// InvalidSeriesError reports a malformed price series.
type InvalidSeriesError struct {
	Symbol string
	Index  int
	Reason string
}

func (e *InvalidSeriesError) Error() string {
	return fmt.Sprintf("invalid series %s at bar %d: %s", e.Symbol, e.Index, e.Reason)
}
