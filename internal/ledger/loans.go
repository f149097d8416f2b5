package ledger

import (
	"context"
	"fmt"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/loan"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/statement"
)

// LoanSummary returns the effective schedules of a property's loans.
func (s *Service) LoanSummary(ctx context.Context, propertyID int64) (*loan.Summary, error) {
	sn, err := s.snapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	return sn.loans, nil
}

// LoanSchedule returns the effective schedule of one loan, imported rows
// included.
func (s *Service) LoanSchedule(ctx context.Context, propertyID int64, name string) ([]model.LoanPayment, error) {
	sn, err := s.snapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	for _, n := range sn.loans.LoanNames() {
		if n == name {
			return sn.loans.Rows(name), nil
		}
	}
	return nil, fmt.Errorf("%w: loan %q", common.ErrNotFound, name)
}

// ConsistencyWarnings lists the standing warnings of a property: loan
// principal not matching the ledger and unbalanced balance sheet years.
func (s *Service) ConsistencyWarnings(ctx context.Context, propertyID int64) ([]string, error) {
	sn, err := s.snapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if w := loan.CheckConsistency(sn.loanConfigs, sn.transactions, s.loanTags); w != "" {
		warnings = append(warnings, w)
	}

	if len(sn.balanceMappings) > 0 {
		bs, err := s.BalanceSheet(ctx, propertyID, nil, statement.ViewEffective)
		if err != nil {
			return nil, err
		}
		if bs.Warning != "" {
			warnings = append(warnings, bs.Warning)
		}
	}
	return warnings, nil
}
