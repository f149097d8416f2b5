package model

import "github.com/shopspring/decimal"

// CompteResultatOverride replaces the computed net result of a year in
// cumulative calculations.
type CompteResultatOverride struct {
	OverrideValue decimal.Decimal
	PropertyID    int64
	Year          int
}

// DepreciationEntry is the annual depreciation (dotation aux amortissements)
// booked for a property.
type DepreciationEntry struct {
	Amount     decimal.Decimal
	PropertyID int64
	Year       int
}
