package statement

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// BalanceTolerance is the relative tolerance of the balance check.
var BalanceTolerance = decimal.RequireFromString("0.0001")

// BalanceStatus is the outcome of the ACTIF == PASSIF check for a year.
type BalanceStatus string

const (
	BalanceBalanced      BalanceStatus = "balanced"
	BalanceUnbalanced    BalanceStatus = "unbalanced"
	BalanceNotApplicable BalanceStatus = "n/a"
)

// BalanceCheck is the per-year balance verdict.
type BalanceCheck struct {
	Difference decimal.Decimal
	Tolerance  decimal.Decimal
	Status     BalanceStatus
}

// SubSection is one fixed sub-category of a balance sheet side.
type SubSection struct {
	Total map[int]decimal.Decimal
	Name  model.SubCategory
	Lines []Line
}

// Side is ACTIF or PASSIF.
type Side struct {
	Total       map[int]decimal.Decimal
	Type        model.MappingType
	SubSections []SubSection
}

// BalanceInputs is the snapshot read by the balance sheet.
type BalanceInputs struct {
	Scope        *model.StatementConfig
	Mappings     []model.CategoryMapping
	Transactions []model.Transaction
	Years        []int
	PropertyID   int64
}

// BalanceSheet is the bilan over several years.
type BalanceSheet struct {
	Checks  map[int]BalanceCheck
	Warning string
	Years   []int
	Actif   Side
	Passif  Side
	NoScope bool
}

// BuildBalanceSheet aggregates the balance sheet. reg must resolve
// "amortizations" to the accumulated depreciation, "transactions" to the
// year-end bank balance, "loan_payments" to the remaining principal and
// the two compte_resultat sources to the income statement figures.
//
// Ordinary ACTIF categories are shown with the opposite sign of their
// transactions (money spent on an asset is a positive asset) and PASSIF
// categories with the same sign.
func BuildBalanceSheet(ctx context.Context, in BalanceInputs, reg *mapping.Registry) (*BalanceSheet, error) {
	res := mapping.Resolve(in.Mappings, in.Scope, in.Transactions)

	years := mergeYears(in.Years)
	if len(years) == 0 {
		years = res.Years()
	}

	bs := &BalanceSheet{
		Years:   years,
		NoScope: res.NoScope,
		Checks:  make(map[int]BalanceCheck, len(years)),
	}

	var err error
	if bs.Actif, err = buildSide(ctx, model.TypeActif, in, res, reg, years); err != nil {
		return nil, err
	}
	if bs.Passif, err = buildSide(ctx, model.TypePassif, in, res, reg, years); err != nil {
		return nil, err
	}

	var unbalanced []string
	for _, y := range years {
		check := Check(bs.Actif.Total[y], bs.Passif.Total[y])
		bs.Checks[y] = check
		if check.Status == BalanceUnbalanced {
			unbalanced = append(unbalanced, strconv.Itoa(y))
		}
	}
	if len(unbalanced) > 0 {
		bs.Warning = fmt.Sprintf("Le bilan n'est pas équilibré (ACTIF ≠ PASSIF) pour : %s", strings.Join(unbalanced, ", "))
	}

	return bs, nil
}

func buildSide(ctx context.Context, t model.MappingType, in BalanceInputs, res *mapping.Result, reg *mapping.Registry, years []int) (Side, error) {
	side := Side{Type: t}
	var subTotals []Line

	for _, sc := range model.SubCategoriesFor(t) {
		sub := SubSection{Name: sc}
		for i := range in.Mappings {
			m := &in.Mappings[i]
			if m.Type != t || m.SubCategory != sc || !m.HasMapping() {
				continue
			}
			line := newLine(m.CategoryName, m.SpecialSource)
			if m.IsSpecial {
				if err := fillSpecial(ctx, &line, reg, in.PropertyID, years); err != nil {
					return side, fmt.Errorf("failed to compute %q: %w", m.CategoryName, err)
				}
				if m.SpecialSource == model.SourceAmortizations {
					for y, v := range line.Amounts {
						if v.Valid {
							line.Amounts[y] = mapping.Value(v.Decimal.Abs().Neg())
						}
					}
				}
			} else {
				fillOrdinary(&line, res, years)
				if t == model.TypeActif {
					for y, v := range line.Amounts {
						line.Amounts[y] = mapping.Value(v.Decimal.Neg())
					}
				}
			}
			line.Cumulative = runningSum(&line, years)
			sub.Lines = append(sub.Lines, line)
		}
		sub.Total = sumYears(years, sub.Lines, (*Line).Value)
		side.SubSections = append(side.SubSections, sub)
		subTotals = append(subTotals, Line{Amounts: nullable(sub.Total)})
	}

	side.Total = sumYears(years, subTotals, (*Line).Value)
	return side, nil
}

// Check compares the two side totals of a year.
func Check(actif, passif decimal.Decimal) BalanceCheck {
	diff := actif.Sub(passif)
	if actif.IsZero() {
		return BalanceCheck{Difference: diff, Status: BalanceNotApplicable}
	}
	tol := actif.Abs().Mul(BalanceTolerance)
	status := BalanceUnbalanced
	if diff.Abs().LessThan(tol) {
		status = BalanceBalanced
	}
	return BalanceCheck{Difference: diff, Tolerance: tol, Status: status}
}

// Line finds a category line on either side.
func (bs *BalanceSheet) Line(category string) *Line {
	for _, side := range []*Side{&bs.Actif, &bs.Passif} {
		for i := range side.SubSections {
			for j := range side.SubSections[i].Lines {
				if side.SubSections[i].Lines[j].Category == category {
					return &side.SubSections[i].Lines[j]
				}
			}
		}
	}
	return nil
}

// Balanced reports whether no displayed year is out of tolerance.
func (bs *BalanceSheet) Balanced() bool {
	return bs.Warning == ""
}

func runningSum(line *Line, years []int) map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(years))
	sum := decimal.Zero
	for _, y := range years {
		sum = sum.Add(line.Value(y))
		out[y] = sum
	}
	return out
}

func nullable(m map[int]decimal.Decimal) map[int]decimal.NullDecimal {
	out := make(map[int]decimal.NullDecimal, len(m))
	for y, v := range m {
		out[y] = mapping.Value(v)
	}
	return out
}
