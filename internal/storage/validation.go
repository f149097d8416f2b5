package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = fmt.Errorf("%w: string parameter cannot be empty", common.ErrValidation)
	ErrNilParameter       = fmt.Errorf("%w: parameter cannot be nil", common.ErrValidation)
	ErrEmptySlice         = fmt.Errorf("%w: slice cannot be empty", common.ErrValidation)
	ErrInvalidDateRange   = fmt.Errorf("%w: start date must be before end date", common.ErrValidation)
	ErrInvalidID          = fmt.Errorf("%w: id must be positive", common.ErrValidation)
	ErrInvalidTransaction = fmt.Errorf("%w: invalid transaction", common.ErrValidation)
	ErrInvalidPayment     = fmt.Errorf("%w: invalid loan payment", common.ErrValidation)
	ErrInvalidForecast    = fmt.Errorf("%w: invalid forecast config", common.ErrValidation)
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

func validateStatement(s model.Statement) error {
	if !s.Valid() {
		return fmt.Errorf("%w: undefined statement %q", common.ErrValidation, s)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

// validateTransaction validates a single transaction.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.PropertyID <= 0 {
		return fmt.Errorf("%w: missing property", ErrInvalidTransaction)
	}
	return nil
}

func validatePayments(payments []model.LoanPayment) error {
	if len(payments) == 0 {
		return fmt.Errorf("%w: payments", ErrEmptySlice)
	}
	for i, p := range payments {
		switch {
		case p.PropertyID <= 0:
			return fmt.Errorf("%w: missing property at index %d", ErrInvalidPayment, i)
		case strings.TrimSpace(p.LoanName) == "":
			return fmt.Errorf("%w: missing loan name at index %d", ErrInvalidPayment, i)
		case p.Date.IsZero():
			return fmt.Errorf("%w: missing date at index %d", ErrInvalidPayment, i)
		}
	}
	return nil
}

func validateForecastConfigs(configs []model.AnnualForecastConfig) error {
	for i, c := range configs {
		switch {
		case c.PropertyID <= 0:
			return fmt.Errorf("%w: missing property at index %d", ErrInvalidForecast, i)
		case c.Year <= 0:
			return fmt.Errorf("%w: missing year at index %d", ErrInvalidForecast, i)
		case strings.TrimSpace(c.Level1) == "":
			return fmt.Errorf("%w: missing level_1 at index %d", ErrInvalidForecast, i)
		case !c.TargetType.Valid():
			return fmt.Errorf("%w: undefined target %q at index %d", ErrInvalidForecast, c.TargetType, i)
		}
	}
	return nil
}
