package loan

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/finmath"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// Summary holds the effective schedules of a property's loans.
type Summary struct {
	loans []loanSchedule
}

type loanSchedule struct {
	config   *model.LoanConfig
	name     string
	rows     []model.LoanPayment
	imported map[int]bool
}

// Aggregate builds the effective schedules: for every loan and calendar year
// with imported payments, the imported rows replace the derived ones.
// Imported rows of a loan that has no configuration only count towards
// interest.
func Aggregate(configs []model.LoanConfig, imported []model.LoanPayment) *Summary {
	byLoan := make(map[string]map[int][]model.LoanPayment)
	for _, p := range imported {
		years, ok := byLoan[p.LoanName]
		if !ok {
			years = make(map[int][]model.LoanPayment)
			byLoan[p.LoanName] = years
		}
		years[p.Date.Year()] = append(years[p.Date.Year()], p)
	}

	s := &Summary{}
	known := make(map[string]bool, len(configs))
	for i := range configs {
		cfg := &configs[i]
		known[cfg.Name] = true
		s.loans = append(s.loans, mergeSchedule(cfg, BuildSchedule(*cfg), byLoan[cfg.Name]))
	}

	orphans := make([]string, 0)
	for name := range byLoan {
		if !known[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)
	for _, name := range orphans {
		slog.Warn("imported payments for an unconfigured loan", "loan", name)
		s.loans = append(s.loans, mergeSchedule(nil, nil, byLoan[name]))
		s.loans[len(s.loans)-1].name = name
	}

	return s
}

func mergeSchedule(cfg *model.LoanConfig, derived []model.LoanPayment, imported map[int][]model.LoanPayment) loanSchedule {
	ls := loanSchedule{config: cfg, imported: make(map[int]bool, len(imported))}
	if cfg != nil {
		ls.name = cfg.Name
	}

	for _, row := range derived {
		if _, ok := imported[row.Date.Year()]; ok {
			continue
		}
		ls.rows = append(ls.rows, row)
	}
	for year, rows := range imported {
		ls.imported[year] = true
		ls.rows = append(ls.rows, rows...)
	}

	sort.SliceStable(ls.rows, func(i, j int) bool {
		return ls.rows[i].Date.Before(ls.rows[j].Date)
	})
	return ls
}

// HasLoans reports whether any loan is configured.
func (s *Summary) HasLoans() bool {
	for _, l := range s.loans {
		if l.config != nil {
			return true
		}
	}
	return false
}

// LoanNames lists loans in configuration order, then orphaned imports.
func (s *Summary) LoanNames() []string {
	names := make([]string, 0, len(s.loans))
	for _, l := range s.loans {
		names = append(names, l.name)
	}
	return names
}

// Rows returns the effective schedule of one loan.
func (s *Summary) Rows(name string) []model.LoanPayment {
	for _, l := range s.loans {
		if l.name == name {
			return l.rows
		}
	}
	return nil
}

// IsImported reports whether the loan's rows for year come from imported
// payments.
func (s *Summary) IsImported(name string, year int) bool {
	for _, l := range s.loans {
		if l.name == name {
			return l.imported[year]
		}
	}
	return false
}

// InterestForYear sums the interest of every loan paid in year.
func (s *Summary) InterestForYear(year int) decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.loans {
		total = total.Add(l.interestForYear(year))
	}
	return total
}

// LoanInterestForYear sums one loan's interest paid in year.
func (s *Summary) LoanInterestForYear(name string, year int) decimal.Decimal {
	for _, l := range s.loans {
		if l.name == name {
			return l.interestForYear(year)
		}
	}
	return decimal.Zero
}

// RemainingPrincipalAt is the outstanding principal of all loans on
// December 31 of year.
func (s *Summary) RemainingPrincipalAt(year int) decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.loans {
		total = total.Add(l.remainingAt(year))
	}
	return total
}

// LoanRemainingAt is one loan's outstanding principal on December 31 of year.
func (s *Summary) LoanRemainingAt(name string, year int) decimal.Decimal {
	for _, l := range s.loans {
		if l.name == name {
			return l.remainingAt(year)
		}
	}
	return decimal.Zero
}

// Years lists the calendar years covered by any schedule row.
func (s *Summary) Years() []int {
	seen := make(map[int]bool)
	for _, l := range s.loans {
		for _, r := range l.rows {
			seen[r.Date.Year()] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func (l loanSchedule) interestForYear(year int) decimal.Decimal {
	total := decimal.Zero
	for _, r := range l.rows {
		if r.Date.Year() == year {
			total = total.Add(r.InterestPortion)
		}
	}
	return total
}

// remainingAt is credit - Σ principal up to the end of year. Loans without a
// usable configuration, or not yet started by then, report zero.
func (l loanSchedule) remainingAt(year int) decimal.Decimal {
	if l.config == nil || !l.config.Schedulable() {
		return decimal.Zero
	}
	end := finmath.EndOfYear(year)
	if l.config.LoanStartDate.After(end) {
		return decimal.Zero
	}

	remaining := l.config.CreditAmount
	for _, r := range l.rows {
		if r.Date.After(end) {
			break
		}
		remaining = remaining.Sub(r.PrincipalPortion)
	}
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}
