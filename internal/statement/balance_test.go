package statement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		actif  string
		passif string
		want   BalanceStatus
	}{
		{"within tolerance", "10000", "10000.5", BalanceBalanced},
		{"exact", "10000", "10000", BalanceBalanced},
		{"out of tolerance", "10000", "10005", BalanceUnbalanced},
		{"on the tolerance edge", "10000", "10001", BalanceUnbalanced},
		{"empty actif", "0", "0", BalanceNotApplicable},
		{"empty actif with passif", "0", "5", BalanceNotApplicable},
		{"negative actif", "-10000", "-10000.5", BalanceBalanced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(dec(tt.actif), dec(tt.passif))
			assert.Equal(t, tt.want, got.Status)
			assertDec(t, tt.actif, got.Difference.Add(dec(tt.passif)))
		})
	}
}

func balanceFixture() BalanceInputs {
	bilan := func(t model.MappingType, sc model.SubCategory, name string, values ...string) model.CategoryMapping {
		return model.CategoryMapping{Statement: model.StatementBalance, Type: t, SubCategory: sc, CategoryName: name, Level1Values: values}
	}
	special := func(t model.MappingType, sc model.SubCategory, name string, src model.SpecialSource) model.CategoryMapping {
		m := bilan(t, sc, name)
		m.IsSpecial = true
		m.SpecialSource = src
		return m
	}

	return BalanceInputs{
		PropertyID: 1,
		Years:      []int{2021, 2022},
		Scope:      &model.StatementConfig{Statement: model.StatementBalance, Level3Values: []string{"Logement"}},
		Mappings: []model.CategoryMapping{
			bilan(model.TypeActif, model.SubActifImmobilise, "Immobilisations", "Achat"),
			special(model.TypeActif, model.SubActifImmobilise, model.CategoryAmortissementsCumules, model.SourceAmortizations),
			special(model.TypeActif, model.SubActifCirculant, model.CategoryCompteBancaire, model.SourceTransactions),
			bilan(model.TypePassif, model.SubCapitauxPropres, "Apport personnel", "Apport"),
			special(model.TypePassif, model.SubCapitauxPropres, model.CategoryResultatExercice, model.SourceCompteResultat),
			special(model.TypePassif, model.SubCapitauxPropres, model.CategoryReportANouveau, model.SourceCompteResultatCumul),
			special(model.TypePassif, model.SubDettesFinancieres, model.CategoryEmpruntBancaire, model.SourceLoanPayments),
			bilan(model.TypePassif, model.SubTresoreriePassive, "Découvert"),
		},
		Transactions: []model.Transaction{
			txn("2021-01-02", "20000", "Apport"),
			txn("2021-01-03", "100000", "Emprunt"),
			txn("2021-01-10", "-100000", "Achat"),
		},
	}
}

func balanceRegistry(t *testing.T, result string) *mapping.Registry {
	reg, err := mapping.NewRegistry(map[model.SpecialSource]mapping.Provider{
		// the provider sign is ignored for accumulated depreciation
		model.SourceAmortizations:       byYear(map[int]string{2021: "3000"}),
		model.SourceTransactions:        byYear(map[int]string{2021: "17000"}),
		model.SourceLoanPayments:        byYear(map[int]string{2021: "97000"}),
		model.SourceCompteResultat:      byYear(map[int]string{2021: result}),
		model.SourceCompteResultatCumul: byYear(map[int]string{2021: "0"}),
	})
	require.NoError(t, err)
	return reg
}

func TestBuildBalanceSheet(t *testing.T) {
	bs, err := BuildBalanceSheet(context.Background(), balanceFixture(), balanceRegistry(t, "-3000"))
	require.NoError(t, err)

	require.Len(t, bs.Actif.SubSections, 2)
	require.Len(t, bs.Passif.SubSections, 3)
	assert.Equal(t, model.SubActifImmobilise, bs.Actif.SubSections[0].Name)
	assert.Equal(t, model.SubDettesFinancieres, bs.Passif.SubSections[2].Name)
	assert.Empty(t, bs.Passif.SubSections[1].Lines, "unmapped category is hidden")

	immo := bs.Line("Immobilisations")
	require.NotNil(t, immo)
	assertDec(t, "100000", immo.Value(2021), "asset purchases show as positive assets")
	assertDec(t, "100000", immo.Cumulative[2022])

	amort := bs.Line(model.CategoryAmortissementsCumules)
	require.NotNil(t, amort)
	assertDec(t, "-3000", amort.Value(2021))
	assert.False(t, amort.Amounts[2022].Valid)

	assertDec(t, "97000", bs.Actif.SubSections[0].Total[2021])
	assertDec(t, "114000", bs.Actif.Total[2021])
	assertDec(t, "114000", bs.Passif.Total[2021])

	assert.Equal(t, BalanceBalanced, bs.Checks[2021].Status)
	assert.Equal(t, BalanceNotApplicable, bs.Checks[2022].Status)
	assert.Empty(t, bs.Warning)
	assert.True(t, bs.Balanced())
}

func TestBuildBalanceSheet_SingleWarning(t *testing.T) {
	in := balanceFixture()
	in.Transactions = append(in.Transactions, txn("2022-02-01", "-500", "Achat"))

	bs, err := BuildBalanceSheet(context.Background(), in, balanceRegistry(t, "0"))
	require.NoError(t, err)

	assert.Equal(t, BalanceUnbalanced, bs.Checks[2021].Status)
	assertDec(t, "-3000", bs.Checks[2021].Difference)
	assert.Equal(t, BalanceUnbalanced, bs.Checks[2022].Status)
	assert.Equal(t, "Le bilan n'est pas équilibré (ACTIF ≠ PASSIF) pour : 2021, 2022", bs.Warning)
	assert.False(t, bs.Balanced())
}

func TestBuildBalanceSheet_UsesIncomeStatement(t *testing.T) {
	ctx := context.Background()
	in := incomeFixture()
	in.Overrides = []model.CompteResultatOverride{{Year: 2021, OverrideValue: dec("1000")}}
	is, err := BuildIncomeStatement(ctx, in, incomeRegistry(t))
	require.NoError(t, err)

	for _, tt := range []struct {
		view ResultView
		want string
	}{
		{ViewEffective, "1000"},
		{ViewNet, "5913.46"},
	} {
		v, err := is.ResultProvider(tt.view).Amount(ctx, 1, 2021)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assertDec(t, tt.want, v.Decimal)
	}

	v, err := is.ResultProvider(ViewNet).Amount(ctx, 1, 2019)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	carry, err := is.CarryForwardProvider().Amount(ctx, 1, 2022)
	require.NoError(t, err)
	assertDec(t, "1000", carry.Decimal)
}
