package statement

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

// Report sheet names.
const (
	IncomeSheet      = "Compte de résultat"
	BalanceSheetName = "Bilan"
)

// IncomeReport flattens the income statement into exportable rows: each
// section with its lines, then the totals block.
func IncomeReport(is *IncomeStatement) *service.Report {
	r := &service.Report{
		Title:   IncomeSheet,
		Sheet:   IncomeSheet,
		Headers: yearHeaders(is.Years),
	}
	if is.NoScope {
		r.Warnings = append(r.Warnings, "Aucun périmètre level_3 configuré pour le compte de résultat")
	}

	for _, sec := range is.Sections {
		r.Rows = append(r.Rows, service.ReportRow{Label: string(sec.Type), Bold: true})
		for i := range sec.Lines {
			r.Rows = append(r.Rows, lineRow(&sec.Lines[i], is.Years))
		}
	}

	r.Rows = append(r.Rows,
		totalRow("Total des produits", is.TotalProduits, is.Years),
		totalRow("Total des charges", is.TotalCharges, is.Years),
		totalRow("Résultat d'exploitation", is.ResultatExploitation, is.Years),
		totalRow("Charges d'intérêt", is.ChargesInteret, is.Years),
		totalRow("Résultat net", is.ResultatNet, is.Years),
		totalRow("Résultat retenu", is.ResultatEffectif, is.Years),
		totalRow("Résultat cumulé", is.ResultatCumule, is.Years),
	)
	return r
}

// BalanceReport flattens the balance sheet: each side, its sub-sections
// and lines, the side totals and the balance verdict per year.
func BalanceReport(bs *BalanceSheet) *service.Report {
	r := &service.Report{
		Title:   BalanceSheetName,
		Sheet:   BalanceSheetName,
		Headers: yearHeaders(bs.Years),
	}
	if bs.NoScope {
		r.Warnings = append(r.Warnings, "Aucun périmètre level_3 configuré pour le bilan")
	}
	if bs.Warning != "" {
		r.Warnings = append(r.Warnings, bs.Warning)
	}

	for _, side := range []Side{bs.Actif, bs.Passif} {
		r.Rows = append(r.Rows, service.ReportRow{Label: string(side.Type), Bold: true})
		for _, sub := range side.SubSections {
			r.Rows = append(r.Rows, service.ReportRow{
				Label: string(sub.Name),
				Cells: cells(sub.Total, bs.Years),
				Level: 1,
				Bold:  true,
			})
			for i := range sub.Lines {
				row := lineRow(&sub.Lines[i], bs.Years)
				row.Level = 2
				r.Rows = append(r.Rows, row)
			}
		}
		r.Rows = append(r.Rows, totalRow("Total "+string(side.Type), side.Total, bs.Years))
	}

	diff := make(map[int]decimal.Decimal, len(bs.Years))
	for _, y := range bs.Years {
		if c, ok := bs.Checks[y]; ok && c.Status != BalanceNotApplicable {
			diff[y] = c.Difference
		}
	}
	r.Rows = append(r.Rows, totalRow("Écart ACTIF - PASSIF", diff, bs.Years))
	return r
}

func yearHeaders(years []int) []string {
	out := make([]string, 0, len(years)+1)
	out = append(out, "Catégorie")
	for _, y := range years {
		out = append(out, strconv.Itoa(y))
	}
	return out
}

func lineRow(l *Line, years []int) service.ReportRow {
	row := service.ReportRow{Label: l.Category, Level: 1}
	for _, y := range years {
		row.Cells = append(row.Cells, l.Amounts[y])
	}
	return row
}

func totalRow(label string, values map[int]decimal.Decimal, years []int) service.ReportRow {
	return service.ReportRow{Label: label, Cells: cells(values, years), Bold: true}
}

func cells(values map[int]decimal.Decimal, years []int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(years))
	for i, y := range years {
		if v, ok := values[y]; ok {
			out[i] = mapping.Value(v)
		}
	}
	return out
}
