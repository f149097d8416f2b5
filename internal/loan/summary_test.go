package loan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/lmnp-ledger/internal/model"
)

func TestSummary_YearAggregates(t *testing.T) {
	s := Aggregate([]model.LoanConfig{referenceLoan()}, nil)
	require.True(t, s.HasLoans())

	// 2020 holds 11 payments (February to December).
	assert.InDelta(t, 1802.09, s.InterestForYear(2020).InexactFloat64(), 0.05)
	assert.InDelta(t, 1886.54, s.InterestForYear(2021).InexactFloat64(), 0.05)
	assert.InDelta(t, 92053.39, s.RemainingPrincipalAt(2021).InexactFloat64(), 0.05)

	assert.True(t, s.RemainingPrincipalAt(2019).IsZero(), "loan not started yet")
	assert.True(t, s.RemainingPrincipalAt(2040).IsZero())
	assert.True(t, s.InterestForYear(2041).IsZero())

	years := s.Years()
	assert.Equal(t, 2020, years[0])
	assert.Equal(t, 2040, years[len(years)-1])
}

func TestSummary_ImportedPaymentsOverrideYear(t *testing.T) {
	cfg := referenceLoan()
	imported := []model.LoanPayment{
		{LoanName: cfg.Name, Date: *date(2021, 3, 5), PrincipalPortion: dec("2000"), InterestPortion: dec("60")},
		{LoanName: cfg.Name, Date: *date(2021, 9, 5), PrincipalPortion: dec("2000"), InterestPortion: dec("40")},
	}

	s := Aggregate([]model.LoanConfig{cfg}, imported)

	assert.Equal(t, "100.00", s.InterestForYear(2021).StringFixed(2))
	assert.True(t, s.IsImported(cfg.Name, 2021))
	assert.False(t, s.IsImported(cfg.Name, 2022))
	assert.InDelta(t, 1802.09, s.InterestForYear(2020).InexactFloat64(), 0.05, "other years keep the derived schedule")

	principal2020 := dec("100000").Sub(s.RemainingPrincipalAt(2020))
	expected := dec("100000").Sub(principal2020).Sub(dec("4000"))
	assert.True(t, expected.Equal(s.RemainingPrincipalAt(2021)))

	rows := s.Rows(cfg.Name)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].Date.Before(rows[i-1].Date), "rows stay in date order")
	}
}

func TestSummary_NoLoans(t *testing.T) {
	s := Aggregate(nil, nil)
	assert.False(t, s.HasLoans())
	assert.True(t, s.InterestForYear(2021).IsZero())
	assert.True(t, s.RemainingPrincipalAt(2021).IsZero())
	assert.Empty(t, s.Years())
}

func TestSummary_UnschedulableLoanReportsZero(t *testing.T) {
	cfg := referenceLoan()
	cfg.DurationYears = 0

	s := Aggregate([]model.LoanConfig{cfg}, nil)
	assert.True(t, s.HasLoans())
	assert.True(t, s.InterestForYear(2021).IsZero())
	assert.True(t, s.RemainingPrincipalAt(2021).IsZero())
}

func TestSummary_OrphanImportsCountInterestOnly(t *testing.T) {
	imported := []model.LoanPayment{
		{LoanName: "Prêt travaux", Date: time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC), PrincipalPortion: dec("500"), InterestPortion: dec("25")},
	}
	s := Aggregate(nil, imported)

	assert.False(t, s.HasLoans())
	assert.Equal(t, "25.00", s.InterestForYear(2022).StringFixed(2))
	assert.True(t, s.RemainingPrincipalAt(2022).IsZero())
	assert.Equal(t, []string{"Prêt travaux"}, s.LoanNames())
}

func TestSummary_MultipleLoans(t *testing.T) {
	a := referenceLoan()
	b := referenceLoan()
	b.Name = "Prêt mobilier"
	b.CreditAmount = dec("10000")
	b.DurationYears = 5
	b.LoanEndDate = nil

	s := Aggregate([]model.LoanConfig{a, b}, nil)
	total := s.InterestForYear(2021)
	assert.True(t, total.Equal(s.LoanInterestForYear(a.Name, 2021).Add(s.LoanInterestForYear(b.Name, 2021))))
	assert.True(t, s.LoanRemainingAt(b.Name, 2025).IsZero(), "5 year loan repaid by end of 2025")
}

func TestCheckConsistency(t *testing.T) {
	cfg := referenceLoan()
	tags := []string{"Emprunt"}

	matching := []model.Transaction{{Level1: "Emprunt", Amount: dec("100000")}, {Level1: "Loyer", Amount: dec("700")}}
	assert.Empty(t, CheckConsistency([]model.LoanConfig{cfg}, matching, tags))

	partial := []model.Transaction{{Level1: "Emprunt", Amount: dec("60000")}}
	warning := CheckConsistency([]model.LoanConfig{cfg}, partial, tags)
	assert.Contains(t, warning, "100000.00")
	assert.Contains(t, warning, "60000.00")

	assert.NotEmpty(t, CheckConsistency([]model.LoanConfig{cfg}, nil, tags))
	assert.Empty(t, CheckConsistency(nil, []model.Transaction{{Level1: "Loyer", Amount: dec("1")}}, tags))
}
