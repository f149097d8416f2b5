package model

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
)

// MaxForecastYears bounds the projection horizon.
const MaxForecastYears = 10

// ProRataSettings toggles extrapolation for one property and statement.
type ProRataSettings struct {
	Target          Statement
	PropertyID      int64
	ForecastYears   int
	ProrataEnabled  bool
	ForecastEnabled bool
}

// Validate checks the forecast horizon.
func (s *ProRataSettings) Validate() error {
	if !s.Target.Valid() {
		return fmt.Errorf("%w: undefined statement %q", common.ErrValidation, s.Target)
	}
	if s.ForecastYears < 1 || s.ForecastYears > MaxForecastYears {
		return fmt.Errorf("%w: forecast years must be between 1 and %d, got %d", common.ErrValidation, MaxForecastYears, s.ForecastYears)
	}
	return nil
}

// DefaultProRataSettings is used when nothing is stored.
func DefaultProRataSettings(propertyID int64, target Statement) ProRataSettings {
	return ProRataSettings{
		PropertyID:    propertyID,
		Target:        target,
		ForecastYears: 3,
	}
}

// AnnualForecastConfig is the projection base of one category for one year.
type AnnualForecastConfig struct {
	BaseAnnualAmount decimal.Decimal
	AnnualGrowthRate decimal.Decimal // fraction, 0.05 is 5%
	Level1           string
	TargetType       Statement
	PropertyID       int64
	Year             int
}

// Key identifies the row for upserts.
func (c *AnnualForecastConfig) Key() string {
	return fmt.Sprintf("%d/%d/%s/%s", c.PropertyID, c.Year, c.Level1, c.TargetType)
}
