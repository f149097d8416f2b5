// Package loan derives amortization schedules from loan configurations and
// aggregates them per calendar year.
package loan

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/finmath"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// Phase is the state of a loan at a given period.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseDeferral   Phase = "deferral"
	PhaseAmortizing Phase = "amortizing"
	PhaseCompleted  Phase = "completed"
)

// PhaseOf returns the phase of the 1-based monthly period.
func PhaseOf(cfg model.LoanConfig, period int) Phase {
	switch {
	case !cfg.Schedulable() || period < 1:
		return PhaseNotStarted
	case period <= cfg.InitialDeferralMonths:
		return PhaseDeferral
	case period <= cfg.TotalMonths():
		return PhaseAmortizing
	default:
		return PhaseCompleted
	}
}

// PhaseAt returns the phase the loan is in on asOf.
func PhaseAt(cfg model.LoanConfig, asOf time.Time) Phase {
	if !cfg.Schedulable() || asOf.Before(*cfg.LoanStartDate) {
		return PhaseNotStarted
	}
	return PhaseOf(cfg, cfg.ElapsedMonths(asOf)+1)
}

// BuildSchedule derives one row per monthly period. Each payment is dated one
// month after the start of its period; rows after the loan end date are
// dropped. Unschedulable configs yield nil.
func BuildSchedule(cfg model.LoanConfig) []model.LoanPayment {
	if !cfg.Schedulable() {
		return nil
	}

	total := cfg.TotalMonths()
	deferral := cfg.InitialDeferralMonths
	if deferral >= total {
		slog.Warn("loan deferral covers the whole term, no schedule derived",
			"loan", cfg.Name, "deferral_months", deferral, "total_months", total)
		return nil
	}

	rate := cfg.MonthlyRate()
	rateDec := decimal.NewFromFloat(rate)
	start := *cfg.LoanStartDate
	balance := cfg.CreditAmount

	rows := make([]model.LoanPayment, 0, total)
	appendRow := func(period int, principal, interest decimal.Decimal) bool {
		date := finmath.AddMonths(start, period)
		if cfg.LoanEndDate != nil && !cfg.LoanEndDate.IsZero() && date.After(*cfg.LoanEndDate) {
			return false
		}
		rows = append(rows, model.LoanPayment{
			PropertyID:       cfg.PropertyID,
			LoanName:         cfg.Name,
			Date:             date,
			PrincipalPortion: principal,
			InterestPortion:  interest,
		})
		return true
	}

	for period := 1; period <= deferral; period++ {
		interest := balance.Mul(rateDec).Round(2)
		principal := decimal.Zero
		if cfg.DeferralMode == model.DeferralTotal {
			// Nothing is paid; the interest joins the principal.
			principal = interest.Neg()
			balance = balance.Add(interest)
		}
		if !appendRow(period, principal, interest) {
			return rows
		}
	}

	nper := total - deferral
	balanceF, _ := balance.Float64()
	pmt, err := finmath.PMT(rate, nper, balanceF, 0, finmath.EndOfPeriod)
	if err != nil {
		slog.Warn("cannot compute loan payment", "loan", cfg.Name, "error", err)
		return rows
	}
	payment := finmath.Round2(-pmt)

	for k := 1; k <= nper; k++ {
		interest := balance.Mul(rateDec).Round(2)
		principal := payment.Sub(interest)
		if k == nper {
			// Absorb the accumulated rounding in the final payment.
			principal = balance
		}
		balance = balance.Sub(principal)
		if !appendRow(deferral+k, principal, interest) {
			break
		}
	}

	return rows
}
