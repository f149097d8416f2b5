// Package finmath implements the spreadsheet annuity functions (PMT, IPMT,
// PPMT) and the date arithmetic used by the loan engine.
//
// Cash-flow signs follow the spreadsheet convention: money received is
// positive, money paid is negative. A positive present value (a loan
// received) yields negative payments, and both the interest and principal
// portions carry the payment's sign, so that
//
//	PMT = IPMT + PPMT  and  Σ PPMT over the term = -pv.
package finmath

import (
	"fmt"
	"math"

	"github.com/Veraticus/lmnp-ledger/internal/common"
)

// Timing says when payments fall within a period.
type Timing int

const (
	// EndOfPeriod is an ordinary annuity (type 0).
	EndOfPeriod Timing = 0
	// BeginningOfPeriod is an annuity-due (type 1).
	BeginningOfPeriod Timing = 1
)

var (
	// ErrInvalidPeriod is returned when per is outside 1..nper.
	ErrInvalidPeriod = fmt.Errorf("%w: invalid period", common.ErrValidation)
	// ErrInvalidTerm is returned when nper is not positive.
	ErrInvalidTerm = fmt.Errorf("%w: number of periods must be positive", common.ErrValidation)
	// ErrInvalidTiming is returned for a payment type other than 0 or 1.
	ErrInvalidTiming = fmt.Errorf("%w: payment type must be 0 or 1", common.ErrValidation)
)

func checkArgs(nper int, when Timing) error {
	if nper <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTerm, nper)
	}
	if when != EndOfPeriod && when != BeginningOfPeriod {
		return fmt.Errorf("%w: got %d", ErrInvalidTiming, when)
	}
	return nil
}

// PMT returns the constant payment of an annuity with periodic rate, nper
// periods, present value pv and future value fv.
func PMT(rate float64, nper int, pv, fv float64, when Timing) (float64, error) {
	if err := checkArgs(nper, when); err != nil {
		return 0, err
	}

	if rate == 0 {
		return -(pv + fv) / float64(nper), nil
	}

	pvif := math.Pow(1+rate, float64(nper))
	pmt := -rate * (pv*pvif + fv) / (pvif - 1)
	if when == BeginningOfPeriod {
		pmt /= 1 + rate
	}
	return pmt, nil
}

// IPMT returns the interest portion of payment per (1-based).
//
// The outstanding balance is accrued period by period from |pv|: interest is
// added, then |PMT| is paid, and the balance never goes below zero. The
// interest of period per is the opening balance times rate.
//
// The sign is the opposite of pv, like PMT: a positive loan amount yields
// negative interest. Giving interest the sign of pv instead would break
// PPMT summing to -pv over the term, so keep it as is.
func IPMT(rate float64, per, nper int, pv, fv float64, when Timing) (float64, error) {
	pmt, err := PMT(rate, nper, pv, fv, when)
	if err != nil {
		return 0, err
	}
	if per < 1 || per > nper {
		return 0, fmt.Errorf("%w: %d not in 1..%d", ErrInvalidPeriod, per, nper)
	}

	interest := interestMagnitude(rate, per, math.Abs(pv), math.Abs(pmt), when)
	if pv > 0 {
		return -interest, nil
	}
	return interest, nil
}

// PPMT returns the principal portion of payment per: PMT - IPMT.
func PPMT(rate float64, per, nper int, pv, fv float64, when Timing) (float64, error) {
	pmt, err := PMT(rate, nper, pv, fv, when)
	if err != nil {
		return 0, err
	}
	ipmt, err := IPMT(rate, per, nper, pv, fv, when)
	if err != nil {
		return 0, err
	}
	return pmt - ipmt, nil
}

func interestMagnitude(rate float64, per int, balance, payment float64, when Timing) float64 {
	if rate == 0 {
		return 0
	}

	if when == BeginningOfPeriod {
		// The first payment falls before any interest has accrued.
		if per == 1 {
			return 0
		}
		for i := 1; i < per; i++ {
			balance = math.Max(balance-payment, 0) * (1 + rate)
		}
		return balance * rate / (1 + rate)
	}

	for i := 1; i < per; i++ {
		balance = math.Max(balance*(1+rate)-payment, 0)
	}
	return balance * rate
}
