package finmath

import "github.com/shopspring/decimal"

// Round2 converts x to a monetary amount rounded half away from zero on the
// cent.
func Round2(x float64) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(2)
}

// RoundMoney rounds a decimal amount to the cent.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
