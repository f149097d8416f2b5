package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/events"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
	"github.com/Veraticus/lmnp-ledger/internal/statement"
	"github.com/Veraticus/lmnp-ledger/internal/storage"
	"github.com/Veraticus/lmnp-ledger/internal/testutil"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store      *storage.SQLiteStorage
	svc        *Service
	propertyID int64
}

// newFixture sets up the reference property: one 100000 loan at 2% over
// 20 years and 12000 of rent booked in 2021.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := testutil.SetupTestDB(t)
	store := db.Storage
	p := db.Property("Studio Lyon")

	svc := New(store, events.NewBus(nil))
	t.Cleanup(svc.Close)

	start, end := day(2020, time.January, 1), day(2040, time.January, 1)
	require.NoError(t, svc.SaveLoanConfig(ctx, &model.LoanConfig{
		PropertyID:    p.ID,
		Name:          "Crédit immobilier",
		CreditAmount:  dec("100000"),
		InterestRate:  dec("2.0"),
		DurationYears: 20,
		LoanStartDate: &start,
		LoanEndDate:   &end,
	}))
	require.NoError(t, svc.CreateMapping(ctx, &model.CategoryMapping{
		PropertyID:   p.ID,
		Statement:    model.StatementIncome,
		Type:         model.TypeProduits,
		CategoryName: "Loyers",
		Level1Values: []string{"Loyer"},
	}))
	require.NoError(t, svc.SetScope(ctx, &model.StatementConfig{
		PropertyID:   p.ID,
		Statement:    model.StatementIncome,
		Level3Values: []string{"Logement"},
	}))

	var txns []model.Transaction
	for m := time.January; m <= time.December; m++ {
		txns = append(txns, model.Transaction{
			ID:         fmt.Sprintf("rent-2021-%02d", m),
			PropertyID: p.ID,
			Date:       day(2021, m, 5),
			Amount:     dec("1000"),
			Label:      "VIR LOCATAIRE",
			Level1:     "Loyer",
			Level3:     "Logement",
		})
	}
	n, err := svc.SaveTransactions(ctx, txns)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	return &fixture{store: store, svc: svc, propertyID: p.ID}
}

func TestIncomeStatement_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	is, err := f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)

	assert.Equal(t, "12000", is.TotalProduits[2021].String())
	assert.Equal(t, "12000", is.ResultatExploitation[2021].String())
	assert.InDelta(t, 1886.54, is.ChargesInteret[2021].InexactFloat64(), 0.05)
	assert.True(t, is.ResultatNet[2021].Equal(dec("12000").Sub(is.ChargesInteret[2021])))
	assert.InDelta(t, 10113.46, is.ResultatNet[2021].InexactFloat64(), 0.05)

	interest := is.Line(model.CategoryCoutFinancement)
	require.NotNil(t, interest)
	assert.True(t, interest.Amounts[2021].Valid)

	depreciation := is.Line(model.CategoryChargesAmortissements)
	require.NotNil(t, depreciation, "always shown")
	assert.False(t, depreciation.Amounts[2021].Valid, "no depreciation recorded")
}

func TestIncomeStatement_DepreciationAndOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SetDepreciation(ctx, f.propertyID, 2021, dec("3000")))
	require.NoError(t, f.svc.SetOverride(ctx, f.propertyID, 2021, dec("500")))

	is, err := f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	assert.Equal(t, "3000", is.TotalCharges[2021].String())
	assert.Equal(t, "9000", is.ResultatExploitation[2021].String())
	assert.True(t, is.Overridden[2021])
	assert.Equal(t, "500", is.ResultatCumule[2021].Sub(is.CumulBefore(2021)).String())
	assert.False(t, is.ResultatNet[2021].Equal(dec("500")), "override leaves the net result alone")

	require.NoError(t, f.svc.DeleteOverride(ctx, f.propertyID, 2021))
	is, err = f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	assert.True(t, is.ResultatCumule[2021].Equal(is.CumulBefore(2021).Add(is.ResultatNet[2021])))
}

func TestIncomeStatement_CumulIncludesLoanOnlyYears(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	is, err := f.svc.IncomeStatement(ctx, f.propertyID, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2021}, is.Years, "display follows transactions")

	// the loan starts in 2020, before the first transaction
	require.True(t, is.ChargesInteret[2020].IsPositive())
	assert.True(t, is.ResultatNet[2020].Equal(is.ChargesInteret[2020].Neg()))
	assert.True(t, is.CumulBefore(2021).Equal(is.ResultatNet[2020]))
	assert.True(t, is.ResultatCumule[2021].Equal(is.ResultatNet[2020].Add(is.ResultatNet[2021])))
	_, beyond := is.ResultatCumule[2022]
	assert.False(t, beyond, "cumulation stops at the last displayed year")
}

func TestService_CacheInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	is, err := f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	require.Equal(t, "12000", is.TotalProduits[2021].String())

	// a write behind the service's back is not seen until announced
	_, err = f.store.SaveTransactions(ctx, []model.Transaction{{
		ID: "late", PropertyID: f.propertyID, Date: day(2021, time.December, 20),
		Amount: dec("500"), Level1: "Loyer", Level3: "Logement",
	}})
	require.NoError(t, err)

	is, err = f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	assert.Equal(t, "12000", is.TotalProduits[2021].String())

	f.svc.Bus().Emit(events.TransactionsChanged, "test", f.propertyID)

	is, err = f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	assert.Equal(t, "12500", is.TotalProduits[2021].String())

	// editing through the service invalidates on its own
	amount := dec("0")
	_, err = f.svc.UpdateTransaction(ctx, "late", model.TransactionEdit{Amount: &amount})
	require.NoError(t, err)

	is, err = f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	assert.Equal(t, "12000", is.TotalProduits[2021].String())

	require.NoError(t, f.svc.DeleteTransaction(ctx, "late"))
	years, err := f.svc.Years(ctx, f.propertyID)
	require.NoError(t, err)
	assert.Equal(t, []int{2021}, years)
}

func TestService_LoanChangeInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.svc.LoanSummary(ctx, f.propertyID)
	require.NoError(t, err)
	require.True(t, summary.HasLoans())

	loans, err := f.store.ListLoanConfigs(ctx, f.propertyID)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.NoError(t, f.svc.DeleteLoanConfig(ctx, loans[0].ID))

	summary, err = f.svc.LoanSummary(ctx, f.propertyID)
	require.NoError(t, err)
	assert.False(t, summary.HasLoans())

	is, err := f.svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	assert.True(t, is.ChargesInteret[2021].IsZero())
	assert.False(t, is.Line(model.CategoryCoutFinancement).Amounts[2021].Valid)
}

// hookedStore runs onList before each transaction listing.
type hookedStore struct {
	*storage.SQLiteStorage
	onList func()
	lists  int
}

func (h *hookedStore) ListTransactions(ctx context.Context, propertyID int64, filter service.TransactionFilter) ([]model.Transaction, error) {
	h.lists++
	if h.onList != nil {
		h.onList()
	}
	return h.SQLiteStorage.ListTransactions(ctx, propertyID, filter)
}

func TestService_InvalidationDuringLoad(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	store := &hookedStore{SQLiteStorage: f.store}
	svc := New(store, events.NewBus(nil))
	t.Cleanup(svc.Close)

	store.onList = func() {
		store.onList = nil
		svc.Bus().Emit(events.TransactionsChanged, "test", f.propertyID)
	}

	_, err := svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	svc.mu.RLock()
	_, cached := svc.cache[f.propertyID]
	svc.mu.RUnlock()
	assert.False(t, cached, "a load overtaken by a change is not cached")

	_, err = svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	_, err = svc.IncomeStatement(ctx, f.propertyID, []int{2021})
	require.NoError(t, err)
	assert.Equal(t, 2, store.lists, "the second load is cached")
}

func TestService_LoanSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows, err := f.svc.LoanSchedule(ctx, f.propertyID, "Crédit immobilier")
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	require.NoError(t, f.svc.SaveLoanPayments(ctx, []model.LoanPayment{
		{PropertyID: f.propertyID, LoanName: "Crédit immobilier", Date: day(2021, time.June, 1), PrincipalPortion: dec("4000"), InterestPortion: dec("100")},
	}))
	summary, err := f.svc.LoanSummary(ctx, f.propertyID)
	require.NoError(t, err)
	assert.Equal(t, "100", summary.InterestForYear(2021).String())

	_, err = f.svc.LoanSchedule(ctx, f.propertyID, "Inconnu")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_UnknownProperty(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.IncomeStatement(context.Background(), 999, nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBalanceSheet_SpecialLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	special := func(name string, t model.MappingType, sub model.SubCategory, source model.SpecialSource) *model.CategoryMapping {
		return &model.CategoryMapping{
			PropertyID:    f.propertyID,
			Statement:     model.StatementBalance,
			Type:          t,
			SubCategory:   sub,
			CategoryName:  name,
			IsSpecial:     true,
			SpecialSource: source,
		}
	}
	for _, m := range []*model.CategoryMapping{
		special(model.CategoryCompteBancaire, model.TypeActif, model.SubActifCirculant, model.SourceTransactions),
		special(model.CategoryResultatExercice, model.TypePassif, model.SubCapitauxPropres, model.SourceCompteResultat),
		special(model.CategoryReportANouveau, model.TypePassif, model.SubCapitauxPropres, model.SourceCompteResultatCumul),
		special(model.CategoryEmpruntBancaire, model.TypePassif, model.SubDettesFinancieres, model.SourceLoanPayments),
	} {
		require.NoError(t, f.svc.CreateMapping(ctx, m))
	}

	bs, err := f.svc.BalanceSheet(ctx, f.propertyID, []int{2021}, statement.ViewEffective)
	require.NoError(t, err)
	assert.Equal(t, []int{2021}, bs.Years)

	assert.Equal(t, "12000", bs.Line(model.CategoryCompteBancaire).Value(2021).String())
	assert.InDelta(t, 92053.39, bs.Line(model.CategoryEmpruntBancaire).Value(2021).InexactFloat64(), 0.05)
	assert.InDelta(t, 10113.46, bs.Line(model.CategoryResultatExercice).Value(2021).InexactFloat64(), 0.05)
	// 2020 only has loan interest, carried forward as a loss
	carried := bs.Line(model.CategoryReportANouveau).Value(2021)
	assert.InDelta(t, -1802.09, carried.InexactFloat64(), 0.05)
	assert.Equal(t, statement.BalanceUnbalanced, bs.Checks[2021].Status)
	assert.Contains(t, bs.Warning, "2021")

	require.NoError(t, f.svc.SetOverride(ctx, f.propertyID, 2021, dec("42")))
	bs, err = f.svc.BalanceSheet(ctx, f.propertyID, []int{2021, 2022}, statement.ViewEffective)
	require.NoError(t, err)
	assert.Equal(t, "42", bs.Line(model.CategoryResultatExercice).Value(2021).String())
	assert.Equal(t, carried.Add(dec("42")).String(), bs.Line(model.CategoryReportANouveau).Value(2022).String())

	bs, err = f.svc.BalanceSheet(ctx, f.propertyID, []int{2021}, statement.ViewNet)
	require.NoError(t, err)
	assert.InDelta(t, 10113.46, bs.Line(model.CategoryResultatExercice).Value(2021).InexactFloat64(), 0.05)
}

func TestConsistencyWarnings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	warnings, err := f.svc.ConsistencyWarnings(ctx, f.propertyID)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "100000.00")

	_, err = f.svc.SaveTransactions(ctx, []model.Transaction{{
		ID: "loan", PropertyID: f.propertyID, Date: day(2020, time.January, 1),
		Amount: dec("100000"), Level1: "Emprunt", Level3: "Bilan",
	}})
	require.NoError(t, err)

	warnings, err = f.svc.ConsistencyWarnings(ctx, f.propertyID)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestForecast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SaveProRataSettings(ctx, &model.ProRataSettings{
		PropertyID:      f.propertyID,
		Target:          model.StatementIncome,
		ForecastEnabled: true,
		ForecastYears:   2,
	}))

	table, err := f.svc.Forecast(ctx, f.propertyID, model.StatementIncome, 2021, day(2021, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023}, table.Years)
	require.NotEmpty(t, table.Rows)

	rent := table.Rows[0]
	assert.Equal(t, "Loyer", rent.Level1)
	assert.False(t, rent.Calculated)
	assert.Equal(t, "12000", rent.RealCurrentYear.String())
	assert.Equal(t, "12000", rent.Projected[2022].String(), "no saved base projects the actual flat")

	var interest *struct{ prev, cur, proj decimal.Decimal }
	for _, r := range table.Rows {
		if r.Level1 == model.CategoryCoutFinancement {
			require.True(t, r.Calculated)
			interest = &struct{ prev, cur, proj decimal.Decimal }{r.RealPreviousYear, r.RealCurrentYear, r.Projected[2023]}
		}
	}
	require.NotNil(t, interest)
	assert.True(t, interest.cur.IsNegative(), "charges keep the sign of transactions")
	assert.True(t, interest.proj.Equal(interest.cur), "calculated rows are carried flat")

	require.NoError(t, f.svc.SetForecastBase(ctx, f.propertyID, model.StatementIncome, 2021, "Loyer", dec("12000"), dec("0.05")))
	table, err = f.svc.Forecast(ctx, f.propertyID, model.StatementIncome, 2021, day(2021, time.December, 31))
	require.NoError(t, err)
	assert.Equal(t, "12600", table.Rows[0].Projected[2022].String())
	assert.Equal(t, "13230", table.Rows[0].Projected[2023].String())

	err = f.svc.SetForecastBase(ctx, f.propertyID, model.StatementIncome, 2021, model.CategoryCoutFinancement, dec("1"), dec("0"))
	assert.True(t, common.IsValidation(err))

	err = f.svc.SetForecastBase(ctx, f.propertyID, model.StatementIncome, 2021, "Inconnu", dec("1"), dec("0"))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPrefillForecast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.PrefillForecast(ctx, f.propertyID, model.StatementIncome, 2022)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	configs, err := f.store.GetForecastConfigs(ctx, f.propertyID, 2022, model.StatementIncome)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "Loyer", configs[0].Level1)
	assert.Equal(t, "12000", configs[0].BaseAnnualAmount.String())
	assert.True(t, configs[0].AnnualGrowthRate.IsZero())
}

func TestForecast_ProRata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SaveProRataSettings(ctx, &model.ProRataSettings{
		PropertyID:     f.propertyID,
		Target:         model.StatementIncome,
		ProrataEnabled: true,
		ForecastYears:  1,
	}))

	table, err := f.svc.Forecast(ctx, f.propertyID, model.StatementIncome, 2021, day(2021, time.December, 31))
	require.NoError(t, err)
	assert.Empty(t, table.Years, "forecast disabled")
	require.True(t, table.Rows[0].Estimated.Valid)
	assert.Equal(t, "12000", table.Rows[0].Estimated.Decimal.String(), "a full year extrapolates to itself")
}
