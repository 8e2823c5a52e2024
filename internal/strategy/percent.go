package strategy

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// percentOf returns (a - b) / base * 100 computed in decimal so that
// boundary values such as 120 vs 100 land exactly on 20.
func percentOf(a, b, base float64) decimal.Decimal {
	d := decimal.NewFromFloat(base)
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Mul(hundred).Div(d)
}

func atLeast(v decimal.Decimal, threshold float64) bool {
	return v.GreaterThanOrEqual(decimal.NewFromFloat(threshold))
}

func atMost(v decimal.Decimal, threshold float64) bool {
	return v.LessThanOrEqual(decimal.NewFromFloat(threshold))
}
