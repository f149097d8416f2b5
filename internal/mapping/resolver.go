// Package mapping resolves user-defined category mappings against ledger
// transactions.
package mapping

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// Result holds the per-category, per-year signed totals of one statement.
type Result struct {
	amounts map[string]map[int]decimal.Decimal
	years   []int
	// NoScope is set when no level_3 value is selected: nothing is in scope
	// and the statement should be shown as unconfigured.
	NoScope bool
}

// Resolve sums, for every ordinary mapping with level_1 values and every
// year, the amounts of transactions whose level_3 is in scope and whose
// level_1 is claimed by the mapping.
//
// Mappings without level_1 values are left out of the result entirely.
// Special mappings are left to the provider registry. A level_1 value
// claimed by two mappings counts in both; overlaps are logged, not fixed.
func Resolve(mappings []model.CategoryMapping, scope *model.StatementConfig, txns []model.Transaction) *Result {
	res := &Result{amounts: make(map[string]map[int]decimal.Decimal)}
	if scope.Empty() {
		res.NoScope = true
		return res
	}

	if overlaps := FindOverlaps(mappings); len(overlaps) > 0 {
		for _, o := range overlaps {
			slog.Warn("level_1 value claimed by several mappings",
				"level_1", o.Level1, "categories", o.Categories)
		}
	}

	claims := make(map[string][]string)
	for i := range mappings {
		m := &mappings[i]
		if m.IsSpecial || !m.HasMapping() {
			continue
		}
		res.amounts[m.CategoryName] = make(map[int]decimal.Decimal)
		for _, v := range m.Level1Values {
			claims[v] = append(claims[v], m.CategoryName)
		}
	}

	seenYears := make(map[int]bool)
	for _, t := range txns {
		if !scope.InScope(t.Level3) {
			continue
		}
		year := t.Year()
		seenYears[year] = true
		for _, category := range claims[t.Level1] {
			byYear := res.amounts[category]
			byYear[year] = byYear[year].Add(t.Amount)
		}
	}

	for y := range seenYears {
		res.years = append(res.years, y)
	}
	sort.Ints(res.years)

	return res
}

// Years lists the years with in-scope transactions, ascending.
func (r *Result) Years() []int {
	return r.years
}

// Has reports whether the category is mapped.
func (r *Result) Has(category string) bool {
	_, ok := r.amounts[category]
	return ok
}

// Amount returns the category's total for year. ok is false when the
// category has no mapping; a mapped category with no matching transaction
// returns zero and true.
func (r *Result) Amount(category string, year int) (decimal.Decimal, bool) {
	byYear, ok := r.amounts[category]
	if !ok {
		return decimal.Zero, false
	}
	return byYear[year], true
}

// Categories lists the mapped categories in name order.
func (r *Result) Categories() []string {
	names := make([]string, 0, len(r.amounts))
	for name := range r.amounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
