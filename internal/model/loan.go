package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/finmath"
)

// DeferralMode describes what is paid during the initial deferral.
type DeferralMode string

const (
	// DeferralInterestOnly pays interest, no principal ("différé partiel").
	DeferralInterestOnly DeferralMode = "interest_only"
	// DeferralTotal pays nothing; interest is capitalized ("différé total").
	DeferralTotal DeferralMode = "total"
)

// LoanConfig describes a property loan.
type LoanConfig struct {
	LoanStartDate         *time.Time
	LoanEndDate           *time.Time
	CreditAmount          decimal.Decimal
	InterestRate          decimal.Decimal // annual, percent
	Name                  string
	DeferralMode          DeferralMode
	ID                    int64
	PropertyID            int64
	DurationYears         int
	InitialDeferralMonths int
}

// Validate checks the fields a user can get wrong.
// A loan without start date or with zero duration is valid: it simply
// produces no schedule.
func (c *LoanConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: loan name is required", common.ErrValidation)
	}
	if !c.CreditAmount.IsPositive() {
		return fmt.Errorf("%w: credit amount must be positive", common.ErrValidation)
	}
	if c.InterestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate cannot be negative", common.ErrValidation)
	}
	if c.DurationYears < 0 {
		return fmt.Errorf("%w: duration cannot be negative", common.ErrValidation)
	}
	if c.InitialDeferralMonths < 0 {
		return fmt.Errorf("%w: deferral cannot be negative", common.ErrValidation)
	}
	if c.DurationYears > 0 && c.InitialDeferralMonths >= c.DurationYears*12 {
		return fmt.Errorf("%w: deferral of %d months leaves no amortization period", common.ErrValidation, c.InitialDeferralMonths)
	}
	switch c.DeferralMode {
	case "", DeferralInterestOnly, DeferralTotal:
	default:
		return fmt.Errorf("%w: unknown deferral mode %q", common.ErrValidation, c.DeferralMode)
	}
	if c.LoanStartDate != nil && c.LoanEndDate != nil && c.LoanEndDate.Before(*c.LoanStartDate) {
		return fmt.Errorf("%w: loan ends before it starts", common.ErrValidation)
	}
	return nil
}

// Schedulable reports whether a schedule can be derived from the config.
func (c *LoanConfig) Schedulable() bool {
	return c.DurationYears > 0 && c.LoanStartDate != nil && !c.LoanStartDate.IsZero()
}

// TotalMonths is the contractual number of monthly periods.
func (c *LoanConfig) TotalMonths() int {
	return c.DurationYears * 12
}

// MonthlyRate is the periodic rate as a fraction.
func (c *LoanConfig) MonthlyRate() float64 {
	rate, _ := c.InterestRate.Float64()
	return rate / 100 / 12
}

// ElapsedMonths counts whole months between the loan start and asOf,
// clamped to [0, TotalMonths].
func (c *LoanConfig) ElapsedMonths(asOf time.Time) int {
	if !c.Schedulable() {
		return 0
	}
	start := *c.LoanStartDate
	months := (asOf.Year()-start.Year())*12 + int(asOf.Month()) - int(start.Month())
	if asOf.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	if months > c.TotalMonths() {
		return c.TotalMonths()
	}
	return months
}

// RemainingMonths is TotalMonths minus ElapsedMonths.
func (c *LoanConfig) RemainingMonths(asOf time.Time) int {
	if !c.Schedulable() {
		return 0
	}
	return c.TotalMonths() - c.ElapsedMonths(asOf)
}

// YearFraction is the loan duration in years on an actual/365 basis.
// ok is false when either date is missing.
func (c *LoanConfig) YearFraction() (float64, bool) {
	return finmath.YearFrac(c.LoanStartDate, c.LoanEndDate)
}

// LoanPayment is one period of a loan schedule, imported or derived.
type LoanPayment struct {
	Date             time.Time
	PrincipalPortion decimal.Decimal
	InterestPortion  decimal.Decimal
	LoanName         string
	ID               int64
	PropertyID       int64
}

// Total is the cash paid for the period.
func (p *LoanPayment) Total() decimal.Decimal {
	return p.PrincipalPortion.Add(p.InterestPortion)
}
