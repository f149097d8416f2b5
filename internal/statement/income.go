package statement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// IncomeInputs is a consistent snapshot of everything the income statement
// reads for one property.
type IncomeInputs struct {
	Scope        *model.StatementConfig
	Mappings     []model.CategoryMapping
	Transactions []model.Transaction
	Overrides    []model.CompteResultatOverride
	// Years to display. Empty means every year with in-scope data.
	Years []int
	// DataYears are years the providers have figures for (loan schedules,
	// depreciation) even without any transaction.
	DataYears  []int
	PropertyID int64
}

// Section groups the lines of one income statement type.
type Section struct {
	Type  model.MappingType
	Lines []Line
}

// IncomeStatement is the compte de résultat over several years.
type IncomeStatement struct {
	TotalProduits        map[int]decimal.Decimal
	TotalCharges         map[int]decimal.Decimal
	ResultatExploitation map[int]decimal.Decimal
	ChargesInteret       map[int]decimal.Decimal
	ResultatNet          map[int]decimal.Decimal
	// ResultatEffectif is the net result with the override applied.
	ResultatEffectif map[int]decimal.Decimal
	// ResultatCumule runs from the earliest year with data, so it may hold
	// years before the first displayed one.
	ResultatCumule map[int]decimal.Decimal
	Overridden     map[int]bool
	Years          []int
	Sections       []Section
	NoScope        bool
}

// alwaysShown are the charges lines displayed even without a mapping.
var alwaysShown = []struct {
	category string
	source   model.SpecialSource
}{
	{model.CategoryChargesAmortissements, model.SourceAmortizations},
	{model.CategoryCoutFinancement, model.SourceLoanPayments},
}

// BuildIncomeStatement aggregates the income statement. reg must resolve
// "amortizations" to the annual depreciation and "loan_payments" to the
// loan interest of the year.
func BuildIncomeStatement(ctx context.Context, in IncomeInputs, reg *mapping.Registry) (*IncomeStatement, error) {
	res := mapping.Resolve(in.Mappings, in.Scope, in.Transactions)

	overrides := make(map[int]decimal.Decimal, len(in.Overrides))
	var overrideYears []int
	for _, o := range in.Overrides {
		overrides[o.Year] = o.OverrideValue
		overrideYears = append(overrideYears, o.Year)
	}

	display := mergeYears(in.Years)
	if len(display) == 0 {
		display = res.Years()
	}
	// Cumulation starts at the earliest year with data and covers every
	// year in between, so gaps contribute zero without stopping the sum.
	years := span(mergeYears(display, res.Years(), overrideYears, in.DataYears))
	if len(display) > 0 {
		years = trimAfter(years, display[len(display)-1])
	}

	is := &IncomeStatement{
		Years:                display,
		NoScope:              res.NoScope,
		TotalProduits:        make(map[int]decimal.Decimal),
		TotalCharges:         make(map[int]decimal.Decimal),
		ResultatExploitation: make(map[int]decimal.Decimal),
		ChargesInteret:       make(map[int]decimal.Decimal),
		ResultatNet:          make(map[int]decimal.Decimal),
		ResultatEffectif:     make(map[int]decimal.Decimal),
		ResultatCumule:       make(map[int]decimal.Decimal),
		Overridden:           make(map[int]bool),
	}

	for _, t := range model.TypesFor(model.StatementIncome) {
		section := Section{Type: t}
		shown := make(map[string]bool)
		for i := range in.Mappings {
			m := &in.Mappings[i]
			if m.Type != t || !m.HasMapping() {
				continue
			}
			line := newLine(m.CategoryName, m.SpecialSource)
			if m.IsSpecial {
				if err := fillSpecial(ctx, &line, reg, in.PropertyID, years); err != nil {
					return nil, fmt.Errorf("failed to compute %q: %w", m.CategoryName, err)
				}
			} else {
				fillOrdinary(&line, res, years)
			}
			section.Lines = append(section.Lines, line)
			shown[m.CategoryName] = true
		}

		if t == model.TypeCharges {
			for _, s := range alwaysShown {
				if shown[s.category] {
					continue
				}
				line := newLine(s.category, s.source)
				if err := fillSpecial(ctx, &line, reg, in.PropertyID, years); err != nil {
					return nil, fmt.Errorf("failed to compute %q: %w", s.category, err)
				}
				section.Lines = append(section.Lines, line)
			}
			// charges are displayed unsigned
			for i := range section.Lines {
				for y, v := range section.Lines[i].Amounts {
					if v.Valid {
						section.Lines[i].Amounts[y] = mapping.Value(v.Decimal.Abs())
					}
				}
			}
		}
		is.Sections = append(is.Sections, section)
	}

	cumul := decimal.Zero
	for _, y := range years {
		produits, charges := decimal.Zero, decimal.Zero
		var interest decimal.NullDecimal
		interestSeen := false
		for _, section := range is.Sections {
			for i := range section.Lines {
				line := &section.Lines[i]
				switch {
				case section.Type == model.TypeProduits:
					produits = produits.Add(line.Value(y))
				case line.Source == model.SourceLoanPayments:
					// interest is its own row; count it once even when
					// several lines point at the loans
					if !interestSeen {
						interest = line.Amounts[y]
						interestSeen = true
					}
				default:
					charges = charges.Add(line.Value(y))
				}
			}
		}

		is.TotalProduits[y] = produits
		is.TotalCharges[y] = charges
		is.ResultatExploitation[y] = produits.Sub(charges)
		is.ChargesInteret[y] = decimal.Zero
		if interestSeen && interest.Valid {
			is.ChargesInteret[y] = interest.Decimal
		}
		is.ResultatNet[y] = is.ResultatExploitation[y].Sub(is.ChargesInteret[y])

		effective := is.ResultatNet[y]
		if o, ok := overrides[y]; ok {
			effective = o
			is.Overridden[y] = true
		}
		is.ResultatEffectif[y] = effective
		cumul = cumul.Add(effective)
		is.ResultatCumule[y] = cumul
	}

	return is, nil
}

// Section returns the section of type t, or nil.
func (is *IncomeStatement) Section(t model.MappingType) *Section {
	for i := range is.Sections {
		if is.Sections[i].Type == t {
			return &is.Sections[i]
		}
	}
	return nil
}

// Line finds a category line in any section.
func (is *IncomeStatement) Line(category string) *Line {
	for i := range is.Sections {
		for j := range is.Sections[i].Lines {
			if is.Sections[i].Lines[j].Category == category {
				return &is.Sections[i].Lines[j]
			}
		}
	}
	return nil
}

// CumulBefore returns the cumulative result up to the end of year-1.
func (is *IncomeStatement) CumulBefore(year int) decimal.Decimal {
	return is.ResultatCumule[year-1]
}

// ResultView selects which figure the balance sheet shows as the year's
// result.
type ResultView string

const (
	// ViewEffective uses the override when one is set.
	ViewEffective ResultView = "effective"
	// ViewNet always uses the computed net result.
	ViewNet ResultView = "net"
)

// ParseResultView accepts "effective", "net" or empty (effective).
func ParseResultView(s string) (ResultView, error) {
	switch ResultView(s) {
	case "", ViewEffective:
		return ViewEffective, nil
	case ViewNet:
		return ViewNet, nil
	}
	return "", fmt.Errorf("%w: unknown result view %q", common.ErrValidation, s)
}

// ResultProvider exposes the year's result to the balance sheet.
func (is *IncomeStatement) ResultProvider(view ResultView) mapping.Provider {
	rows := is.ResultatEffectif
	if view == ViewNet {
		rows = is.ResultatNet
	}
	return mapping.ProviderFunc(func(_ context.Context, _ int64, year int) (decimal.NullDecimal, error) {
		v, ok := rows[year]
		if !ok {
			return decimal.NullDecimal{}, nil
		}
		return mapping.Value(v), nil
	})
}

// CarryForwardProvider exposes the result carried forward from prior years.
func (is *IncomeStatement) CarryForwardProvider() mapping.Provider {
	return mapping.ProviderFunc(func(_ context.Context, _ int64, year int) (decimal.NullDecimal, error) {
		return mapping.Value(is.CumulBefore(year)), nil
	})
}

func trimAfter(years []int, last int) []int {
	out := years[:0:0]
	for _, y := range years {
		if y <= last {
			out = append(out, y)
		}
	}
	return out
}
