package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/statement"
)

// IncomeStatement builds the compte de résultat. Empty years shows every
// year with in-scope data.
func (s *Service) IncomeStatement(ctx context.Context, propertyID int64, years []int) (*statement.IncomeStatement, error) {
	sn, err := s.snapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return s.incomeStatement(ctx, sn, propertyID, years)
}

func (s *Service) incomeStatement(ctx context.Context, sn *snapshot, propertyID int64, years []int) (*statement.IncomeStatement, error) {
	reg, err := mapping.NewRegistry(map[model.SpecialSource]mapping.Provider{
		model.SourceAmortizations: mapping.ProviderFunc(s.annualDepreciation),
		model.SourceLoanPayments:  loanInterest(sn),
	})
	if err != nil {
		return nil, err
	}

	dataYears, err := s.providerYears(ctx, sn, propertyID)
	if err != nil {
		return nil, err
	}

	is, err := statement.BuildIncomeStatement(ctx, statement.IncomeInputs{
		PropertyID:   propertyID,
		Scope:        sn.incomeScope,
		Mappings:     sn.incomeMappings,
		Transactions: sn.transactions,
		Overrides:    sn.overrides,
		Years:        years,
		DataYears:    dataYears,
	}, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to build income statement: %w", err)
	}
	return is, nil
}

// BalanceSheet builds the bilan. Empty years shows every year with
// transactions. view selects the result line.
func (s *Service) BalanceSheet(ctx context.Context, propertyID int64, years []int, view statement.ResultView) (*statement.BalanceSheet, error) {
	sn, err := s.snapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if len(years) == 0 {
		years = sn.years()
	}

	is, err := s.incomeStatement(ctx, sn, propertyID, years)
	if err != nil {
		return nil, err
	}

	reg, err := mapping.NewRegistry(map[model.SpecialSource]mapping.Provider{
		model.SourceAmortizations:       mapping.ProviderFunc(s.accumulatedDepreciation),
		model.SourceTransactions:        mapping.ProviderFunc(s.bankBalance),
		model.SourceLoanPayments:        remainingPrincipal(sn),
		model.SourceCompteResultat:      is.ResultProvider(view),
		model.SourceCompteResultatCumul: is.CarryForwardProvider(),
	})
	if err != nil {
		return nil, err
	}

	bs, err := statement.BuildBalanceSheet(ctx, statement.BalanceInputs{
		PropertyID:   propertyID,
		Scope:        sn.balanceScope,
		Mappings:     sn.balanceMappings,
		Transactions: sn.transactions,
		Years:        years,
	}, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to build balance sheet: %w", err)
	}
	return bs, nil
}

// providerYears lists the years covered by a loan schedule or a
// depreciation entry.
func (s *Service) providerYears(ctx context.Context, sn *snapshot, propertyID int64) ([]int, error) {
	years := sn.loans.Years()
	entries, err := s.storage.ListDepreciation(ctx, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load depreciation: %w", err)
	}
	for _, e := range entries {
		years = append(years, e.Year)
	}
	return years, nil
}

func (s *Service) annualDepreciation(ctx context.Context, propertyID int64, year int) (decimal.NullDecimal, error) {
	v, ok, err := s.storage.GetAnnualDepreciation(ctx, propertyID, year)
	if err != nil || !ok {
		return decimal.NullDecimal{}, err
	}
	return mapping.Value(v), nil
}

func (s *Service) accumulatedDepreciation(ctx context.Context, propertyID int64, year int) (decimal.NullDecimal, error) {
	v, ok, err := s.storage.GetAccumulatedDepreciation(ctx, propertyID, year)
	if err != nil || !ok {
		return decimal.NullDecimal{}, err
	}
	return mapping.Value(v), nil
}

func (s *Service) bankBalance(ctx context.Context, propertyID int64, year int) (decimal.NullDecimal, error) {
	v, err := s.storage.GetRunningBalance(ctx, propertyID, time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return mapping.Value(v), nil
}

func loanInterest(sn *snapshot) mapping.Provider {
	return mapping.ProviderFunc(func(_ context.Context, _ int64, year int) (decimal.NullDecimal, error) {
		if !sn.loans.HasLoans() {
			return decimal.NullDecimal{}, nil
		}
		return mapping.Value(sn.loans.InterestForYear(year)), nil
	})
}

func remainingPrincipal(sn *snapshot) mapping.Provider {
	return mapping.ProviderFunc(func(_ context.Context, _ int64, year int) (decimal.NullDecimal, error) {
		if !sn.loans.HasLoans() {
			return decimal.NullDecimal{}, nil
		}
		return mapping.Value(sn.loans.RemainingPrincipalAt(year)), nil
	})
}
