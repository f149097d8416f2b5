package loan

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// ParsePayments reads a bank amortization table: one payment per line with
// date, principal and interest columns. The separator may be ';' or ',',
// amounts may use a decimal comma and a first line that does not parse as
// a date is taken as a header. Dates are YYYY-MM-DD or DD/MM/YYYY.
func ParsePayments(r io.Reader, propertyID int64, loanName string) ([]model.LoanPayment, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read payments: %w", err)
	}

	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.Comma = detectSeparator(string(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var payments []model.LoanPayment
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("%w: line %d: expected date, principal and interest", common.ErrValidation, line)
		}

		date, err := parsePaymentDate(record[0])
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		principal, err := parseFrenchDecimal(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		interest, err := parseFrenchDecimal(record[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		payments = append(payments, model.LoanPayment{
			PropertyID:       propertyID,
			LoanName:         loanName,
			Date:             date,
			PrincipalPortion: principal,
			InterestPortion:  interest,
		})
	}

	if len(payments) == 0 {
		return nil, fmt.Errorf("%w: no payments found", common.ErrValidation)
	}
	return payments, nil
}

func detectSeparator(content string) rune {
	first, _, _ := strings.Cut(content, "\n")
	if strings.Contains(first, ";") {
		return ';'
	}
	return ','
}

func parsePaymentDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", common.ErrValidation, s)
}

func parseFrenchDecimal(s string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€")), " ", "")
	clean = strings.ReplaceAll(clean, " ", "")
	if !strings.Contains(clean, ".") {
		clean = strings.Replace(clean, ",", ".", 1)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", common.ErrValidation, s)
	}
	return d, nil
}
