package statement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

func findRow(t *testing.T, r *service.Report, label string) service.ReportRow {
	t.Helper()
	for _, row := range r.Rows {
		if row.Label == label {
			return row
		}
	}
	t.Fatalf("row %q not found", label)
	return service.ReportRow{}
}

func TestIncomeReport(t *testing.T) {
	is, err := BuildIncomeStatement(context.Background(), incomeFixture(), incomeRegistry(t))
	require.NoError(t, err)

	r := IncomeReport(is)
	assert.Equal(t, IncomeSheet, r.Sheet)
	assert.Equal(t, []string{"Catégorie", "2021", "2022"}, r.Headers)
	assert.Empty(t, r.Warnings)

	require.NotEmpty(t, r.Rows)
	assert.Equal(t, string(model.TypeProduits), r.Rows[0].Label)
	assert.True(t, r.Rows[0].Bold)

	loyers := findRow(t, r, "Loyers")
	require.Len(t, loyers.Cells, 2)
	assertDec(t, "12000", loyers.Cells[0].Decimal)
	assert.Equal(t, 1, loyers.Level)

	net := findRow(t, r, "Résultat net")
	assert.True(t, net.Bold)
	assertDec(t, "5913.46", net.Cells[0].Decimal)
	assertDec(t, "700", net.Cells[1].Decimal)
}

func TestBalanceReport(t *testing.T) {
	bs, err := BuildBalanceSheet(context.Background(), balanceFixture(), balanceRegistry(t, "-3000"))
	require.NoError(t, err)

	r := BalanceReport(bs)
	assert.Equal(t, BalanceSheetName, r.Sheet)
	assert.Empty(t, r.Warnings)

	amort := findRow(t, r, model.CategoryAmortissementsCumules)
	assert.Equal(t, 2, amort.Level)
	assert.True(t, amort.Cells[0].Valid)
	assertDec(t, "-3000", amort.Cells[0].Decimal)
	assert.False(t, amort.Cells[1].Valid, "no data renders as a dash")

	total := findRow(t, r, "Total ACTIF")
	assertDec(t, "114000", total.Cells[0].Decimal)

	diff := findRow(t, r, "Écart ACTIF - PASSIF")
	assert.True(t, diff.Cells[0].Valid)
	assertDec(t, "0", diff.Cells[0].Decimal)
	assert.False(t, diff.Cells[1].Valid, "empty year has no verdict")
}

func TestBalanceReport_Warning(t *testing.T) {
	in := balanceFixture()
	in.Transactions = append(in.Transactions, txn("2022-02-01", "-500", "Achat"))

	bs, err := BuildBalanceSheet(context.Background(), in, balanceRegistry(t, "0"))
	require.NoError(t, err)

	r := BalanceReport(bs)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "2021, 2022")
}
