package entity

import "github.com/shopspring/decimal"

// CentsToAmount converts a stored minor-unit value into a decimal amount.
func CentsToAmount(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// AmountToCents converts a decimal amount into minor units, rounding half away from zero.
func AmountToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
