package domain

import "github.com/shopspring/decimal"

// Dollars converts integer cents to a dollar amount for display.
func Dollars(cents int64) float64 {
	return decimal.NewFromInt(cents).Shift(-2).InexactFloat64()
}

// FormatDollars renders cents as "$1.50".
func FormatDollars(cents int64) string {
	return "$" + decimal.NewFromInt(cents).Shift(-2).StringFixed(2)
}
