package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/service"
)

// NoData is shown in cells without a value.
const NoData = "—"

// FormatEuro formats an amount the French way: space as thousands
// separator, comma as decimal mark, two decimals and a trailing euro sign.
func FormatEuro(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	b.WriteString(",")
	b.WriteString(frac)
	b.WriteString(" €")
	return b.String()
}

// FormatCell formats an optional amount, NoData when absent.
func FormatCell(v decimal.NullDecimal) string {
	if !v.Valid {
		return NoData
	}
	return FormatEuro(v.Decimal)
}

// RenderReport draws a statement report as a bordered table followed by
// its warnings.
func RenderReport(report *service.Report) string {
	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		row := make([]string, 0, len(r.Cells)+1)
		row = append(row, strings.Repeat("  ", r.Level)+r.Label)
		for _, c := range r.Cells {
			row = append(row, FormatCell(c))
		}
		// header rows have no cells; pad so the borders line up
		for len(row) < len(report.Headers) {
			row = append(row, "")
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtleStyle).
		Headers(report.Headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableCellStyle.Bold(true).Foreground(PrimaryColor)
			}
			style := TableCellStyle
			if col > 0 {
				style = style.Align(lipgloss.Right)
			}
			if row >= 0 && row < len(report.Rows) {
				r := report.Rows[row]
				if r.Bold {
					style = style.Bold(true)
				}
				if col > 0 && col-1 < len(r.Cells) && r.Cells[col-1].Valid && r.Cells[col-1].Decimal.IsNegative() {
					style = style.Foreground(ErrorColor)
				}
			}
			return style
		})

	parts := []string{FormatTitle(report.Title), t.String()}
	for _, w := range report.Warnings {
		parts = append(parts, FormatWarning(w))
	}
	return strings.Join(parts, "\n")
}
