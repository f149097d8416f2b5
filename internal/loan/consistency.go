package loan

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/model"
)

var consistencyTolerance = decimal.NewFromFloat(0.01)

// CheckConsistency compares the configured principal of all loans with the
// ledger transactions tagged as loan disbursements (level_1 in loanTags).
// It returns a warning message, or "" when both agree. The mismatch never
// blocks computation.
func CheckConsistency(configs []model.LoanConfig, txns []model.Transaction, loanTags []string) string {
	tags := make(map[string]bool, len(loanTags))
	for _, t := range loanTags {
		tags[t] = true
	}

	configured := decimal.Zero
	for _, c := range configs {
		configured = configured.Add(c.CreditAmount)
	}

	disbursed := decimal.Zero
	tagged := 0
	for _, t := range txns {
		if tags[t.Level1] {
			disbursed = disbursed.Add(t.Amount)
			tagged++
		}
	}

	if len(configs) == 0 && tagged == 0 {
		return ""
	}
	if configured.Sub(disbursed).Abs().LessThan(consistencyTolerance) {
		return ""
	}
	return fmt.Sprintf("le capital emprunté configuré (%s €) ne correspond pas aux transactions de déblocage du crédit (%s €)",
		configured.StringFixed(2), disbursed.StringFixed(2))
}
