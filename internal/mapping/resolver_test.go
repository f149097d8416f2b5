package mapping

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/model"
)

func txn(date string, amount, level1, level3 string) model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Transaction{
		Date:   d,
		Amount: decimal.RequireFromString(amount),
		Level1: level1,
		Level3: level3,
	}
}

func incomeMappings() []model.CategoryMapping {
	return []model.CategoryMapping{
		{ID: 1, Statement: model.StatementIncome, Type: model.TypeProduits, CategoryName: "Loyers", Level1Values: []string{"Loyer"}},
		{ID: 2, Statement: model.StatementIncome, Type: model.TypeCharges, CategoryName: "Charges de copropriété", Level1Values: []string{"Copro", "Syndic"}},
		{ID: 3, Statement: model.StatementIncome, Type: model.TypeCharges, CategoryName: "Assurance"},
		{ID: 4, Statement: model.StatementIncome, Type: model.TypeCharges, CategoryName: model.CategoryCoutFinancement, IsSpecial: true, SpecialSource: model.SourceLoanPayments},
	}
}

func TestResolve(t *testing.T) {
	scope := &model.StatementConfig{Statement: model.StatementIncome, Level3Values: []string{"Logement"}}
	txns := []model.Transaction{
		txn("2021-01-05", "1000", "Loyer", "Logement"),
		txn("2021-02-05", "1000", "Loyer", "Logement"),
		txn("2021-03-10", "-250.40", "Copro", "Logement"),
		txn("2021-06-10", "-49.60", "Syndic", "Logement"),
		txn("2021-04-01", "500", "Loyer", "Parking"),
		txn("2022-01-05", "1100", "Loyer", "Logement"),
		txn("2022-03-01", "-12", "Frais", "Logement"),
	}

	res := Resolve(incomeMappings(), scope, txns)

	require.False(t, res.NoScope)
	assert.Equal(t, []int{2021, 2022}, res.Years())
	assert.Equal(t, []string{"Charges de copropriété", "Loyers"}, res.Categories())

	tests := []struct {
		name     string
		category string
		year     int
		want     string
		ok       bool
	}{
		{"rent excludes out-of-scope level_3", "Loyers", 2021, "2000", true},
		{"several tags summed", "Charges de copropriété", 2021, "-300", true},
		{"next year", "Loyers", 2022, "1100", true},
		{"mapped but nothing matched", "Charges de copropriété", 2022, "0", true},
		{"mapping without values is absent", "Assurance", 2021, "0", false},
		{"special mapping left to providers", model.CategoryCoutFinancement, 2021, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := res.Amount(tt.category, tt.year)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestResolve_NoScope(t *testing.T) {
	txns := []model.Transaction{txn("2021-01-05", "1000", "Loyer", "Logement")}

	res := Resolve(incomeMappings(), &model.StatementConfig{}, txns)
	assert.True(t, res.NoScope)
	assert.Empty(t, res.Years())
	assert.False(t, res.Has("Loyers"))

	res = Resolve(incomeMappings(), nil, txns)
	assert.True(t, res.NoScope)
}

func TestResolve_OverlapCountsInBoth(t *testing.T) {
	mappings := []model.CategoryMapping{
		{ID: 1, CategoryName: "A", Level1Values: []string{"Loyer"}},
		{ID: 2, CategoryName: "B", Level1Values: []string{"Loyer"}},
	}
	scope := &model.StatementConfig{Level3Values: []string{"Logement"}}
	res := Resolve(mappings, scope, []model.Transaction{txn("2021-01-05", "100", "Loyer", "Logement")})

	a, _ := res.Amount("A", 2021)
	b, _ := res.Amount("B", 2021)
	assert.Equal(t, "100", a.String())
	assert.Equal(t, "100", b.String())
}

func TestFindOverlaps(t *testing.T) {
	mappings := []model.CategoryMapping{
		{CategoryName: "B", Level1Values: []string{"Loyer", "Copro"}},
		{CategoryName: "A", Level1Values: []string{"Loyer"}},
		{CategoryName: "C", Level1Values: []string{"Assurance"}},
	}
	overlaps := FindOverlaps(mappings)
	require.Len(t, overlaps, 1)
	assert.Equal(t, "Loyer", overlaps[0].Level1)
	assert.Equal(t, []string{"A", "B"}, overlaps[0].Categories)

	assert.Empty(t, FindOverlaps(mappings[1:]))
}

func TestConflicts(t *testing.T) {
	existing := []model.CategoryMapping{
		{ID: 1, PropertyID: 1, Statement: model.StatementIncome, CategoryName: "Loyers", Level1Values: []string{"Loyer"}},
		{ID: 2, PropertyID: 1, Statement: model.StatementBalance, CategoryName: "Caution", Level1Values: []string{"Depot"}},
		{ID: 3, PropertyID: 2, Statement: model.StatementIncome, CategoryName: "Loyers", Level1Values: []string{"Depot"}},
	}

	candidate := model.CategoryMapping{PropertyID: 1, Statement: model.StatementIncome, CategoryName: "Divers", Level1Values: []string{"Loyer", "Depot"}}
	assert.Equal(t, map[string]string{"Loyer": "Loyers"}, Conflicts(candidate, existing))

	// a mapping never conflicts with itself
	self := existing[0]
	assert.Empty(t, Conflicts(self, existing))
}

func TestUnclaimed(t *testing.T) {
	txns := []model.Transaction{
		txn("2021-01-05", "1", "Loyer", ""),
		txn("2021-01-05", "1", "Frais", ""),
		txn("2021-01-05", "1", "Banque", ""),
		txn("2021-01-05", "1", "Frais", ""),
		txn("2021-01-05", "1", "", ""),
	}
	assert.Equal(t, []string{"Banque", "Frais"}, Unclaimed(incomeMappings(), txns))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	reg, err := NewRegistry(map[model.SpecialSource]Provider{
		model.SourceLoanPayments: ProviderFunc(func(_ context.Context, _ int64, year int) (decimal.NullDecimal, error) {
			if year < 2020 {
				return decimal.NullDecimal{}, nil
			}
			return Value(decimal.NewFromInt(int64(year))), nil
		}),
	})
	require.NoError(t, err)

	assert.True(t, reg.Has(model.SourceLoanPayments))
	assert.False(t, reg.Has(model.SourceAmortizations))

	v, err := reg.Amount(ctx, model.SourceLoanPayments, 1, 2021)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "2021", v.Decimal.String())

	v, err = reg.Amount(ctx, model.SourceLoanPayments, 1, 2019)
	require.NoError(t, err)
	assert.False(t, v.Valid)

	_, err = reg.Amount(ctx, model.SourceAmortizations, 1, 2021)
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = NewRegistry(map[model.SpecialSource]Provider{"bogus": nil})
	assert.ErrorIs(t, err, ErrUnknownSource)
}
