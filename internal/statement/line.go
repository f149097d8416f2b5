// Package statement builds the multi-year income statement (compte de
// résultat) and balance sheet (bilan) from resolved category amounts and
// special-category providers.
package statement

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// Line is one category row of a statement.
type Line struct {
	Category string
	// Source is set for special lines.
	Source model.SpecialSource
	// Amounts holds the displayed value per year. An invalid entry means
	// "no data" and renders as a dash.
	Amounts map[int]decimal.NullDecimal
	// Cumulative is the running sum of Amounts over the displayed years.
	// Only the balance sheet fills it.
	Cumulative map[int]decimal.Decimal
}

// Special reports whether the line is computed by a provider.
func (l *Line) Special() bool {
	return l.Source != ""
}

// Value returns the amount for year, zero when there is no data.
func (l *Line) Value(year int) decimal.Decimal {
	v := l.Amounts[year]
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}

func newLine(category string, source model.SpecialSource) Line {
	return Line{
		Category: category,
		Source:   source,
		Amounts:  make(map[int]decimal.NullDecimal),
	}
}

// fillSpecial asks the registry for each year. A source without provider
// leaves the line empty rather than failing the statement.
func fillSpecial(ctx context.Context, line *Line, reg *mapping.Registry, propertyID int64, years []int) error {
	if reg == nil || !reg.Has(line.Source) {
		slog.Debug("no provider for special category", "category", line.Category, "source", line.Source)
		return nil
	}
	for _, y := range years {
		v, err := reg.Amount(ctx, line.Source, propertyID, y)
		if err != nil {
			return err
		}
		line.Amounts[y] = v
	}
	return nil
}

func fillOrdinary(line *Line, res *mapping.Result, years []int) {
	for _, y := range years {
		if v, ok := res.Amount(line.Category, y); ok {
			line.Amounts[y] = mapping.Value(v)
		}
	}
}

func sumYears(years []int, lines []Line, value func(*Line, int) decimal.Decimal) map[int]decimal.Decimal {
	total := make(map[int]decimal.Decimal, len(years))
	for _, y := range years {
		sum := decimal.Zero
		for i := range lines {
			sum = sum.Add(value(&lines[i], y))
		}
		total[y] = sum
	}
	return total
}

// mergeYears returns the sorted union of the given year lists.
func mergeYears(lists ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, list := range lists {
		for _, y := range list {
			if !seen[y] {
				seen[y] = true
				out = append(out, y)
			}
		}
	}
	sort.Ints(out)
	return out
}

// span returns every year from the smallest to the largest of years.
func span(years []int) []int {
	if len(years) == 0 {
		return nil
	}
	lo, hi := years[0], years[0]
	for _, y := range years {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	out := make([]int, 0, hi-lo+1)
	for y := lo; y <= hi; y++ {
		out = append(out, y)
	}
	return out
}
