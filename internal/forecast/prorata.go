// Package forecast extrapolates the current year and projects future years
// of a statement per level_1 category.
package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/finmath"
)

// ProRataStrategy turns a partial-year actual into a full-year estimate.
type ProRataStrategy interface {
	// Name returns the strategy identifier used in configuration.
	Name() string
	// Extrapolate estimates the full year from the amount booked up to asOf.
	Extrapolate(actual decimal.Decimal, year int, asOf time.Time) decimal.Decimal
}

// DayCountStrategy scales linearly over calendar days:
// estimate = actual × days in year / days elapsed (asOf included).
type DayCountStrategy struct{}

func (DayCountStrategy) Name() string { return "daycount" }

func (DayCountStrategy) Extrapolate(actual decimal.Decimal, year int, asOf time.Time) decimal.Decimal {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := finmath.EndOfYear(year)
	total := finmath.DaysBetween(start, end) + 1
	elapsed := finmath.DaysBetween(start, asOf) + 1
	if elapsed <= 0 || elapsed >= total {
		return actual
	}
	return finmath.RoundMoney(actual.Mul(decimal.NewFromInt(int64(total))).Div(decimal.NewFromInt(int64(elapsed))))
}

// NoProRata keeps the actual as is.
type NoProRata struct{}

func (NoProRata) Name() string { return "none" }

func (NoProRata) Extrapolate(actual decimal.Decimal, _ int, _ time.Time) decimal.Decimal {
	return actual
}

// StrategyByName resolves a configured strategy name.
func StrategyByName(name string) (ProRataStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "daycount":
		return DayCountStrategy{}, nil
	case "none":
		return NoProRata{}, nil
	}
	return nil, fmt.Errorf("%w: unknown pro-rata strategy %q", common.ErrInvalidConfig, name)
}
