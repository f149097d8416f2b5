package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

const loanColumns = `id, property_id, name, credit_amount, interest_rate, duration_years,
	initial_deferral_months, deferral_mode, loan_start_date, loan_end_date`

// ListLoanConfigs returns the loans of a property in creation order.
func (s *SQLiteStorage) ListLoanConfigs(ctx context.Context, propertyID int64) ([]model.LoanConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return queryLoans(ctx, s.db, `SELECT `+loanColumns+` FROM loan_configs WHERE property_id = ? ORDER BY id`, propertyID)
}

// GetLoanConfig returns a loan by id.
func (s *SQLiteStorage) GetLoanConfig(ctx context.Context, id int64) (*model.LoanConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getLoan(ctx, s.db, id)
}

// SaveLoanConfig inserts a loan when ID is zero, otherwise updates it.
// Renaming a loan renames its imported payments too.
func (s *SQLiteStorage) SaveLoanConfig(ctx context.Context, cfg *model.LoanConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("%w: loan", ErrNilParameter)
	}
	if cfg.DeferralMode == "" {
		cfg.DeferralMode = model.DeferralInterestOnly
	}
	if err := validateID(cfg.PropertyID, "property_id"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var clash int64
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM loan_configs WHERE property_id = ? AND name = ? AND id != ?`,
			cfg.PropertyID, cfg.Name, cfg.ID).Scan(&clash)
		if err != nil {
			return fmt.Errorf("failed to check loan name: %w", err)
		}
		if clash > 0 {
			return fmt.Errorf("%w: loan %q", common.ErrDuplicateEntry, cfg.Name)
		}

		args := []any{
			cfg.PropertyID, cfg.Name, cfg.CreditAmount.String(), cfg.InterestRate.String(),
			cfg.DurationYears, cfg.InitialDeferralMonths, string(cfg.DeferralMode),
			formatOptionalDate(cfg.LoanStartDate), formatOptionalDate(cfg.LoanEndDate),
		}

		if cfg.ID == 0 {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO loan_configs (
					property_id, name, credit_amount, interest_rate, duration_years,
					initial_deferral_months, deferral_mode, loan_start_date, loan_end_date
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
			if err != nil {
				return fmt.Errorf("failed to create loan: %w", err)
			}
			if cfg.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get loan id: %w", err)
			}
			slog.Info("created loan", "id", cfg.ID, "name", cfg.Name)
			return nil
		}

		current, err := getLoan(ctx, tx, cfg.ID)
		if err != nil {
			return err
		}
		if current.PropertyID != cfg.PropertyID {
			return fmt.Errorf("%w: a loan cannot move to another property", common.ErrValidation)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE loan_configs SET
				property_id = ?, name = ?, credit_amount = ?, interest_rate = ?, duration_years = ?,
				initial_deferral_months = ?, deferral_mode = ?, loan_start_date = ?, loan_end_date = ?
			WHERE id = ?`, append(args, cfg.ID)...)
		if err != nil {
			return fmt.Errorf("failed to update loan %d: %w", cfg.ID, err)
		}
		if current.Name != cfg.Name {
			if _, err := tx.ExecContext(ctx,
				`UPDATE loan_payments SET loan_name = ? WHERE property_id = ? AND loan_name = ?`,
				cfg.Name, cfg.PropertyID, current.Name); err != nil {
				return fmt.Errorf("failed to rename loan payments: %w", err)
			}
		}
		return nil
	})
}

// DeleteLoanConfig deletes a loan and all its payments in one transaction.
func (s *SQLiteStorage) DeleteLoanConfig(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		cfg, err := getLoan(ctx, tx, id)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM loan_payments WHERE property_id = ? AND loan_name = ?`, cfg.PropertyID, cfg.Name)
		if err != nil {
			return fmt.Errorf("failed to delete payments of loan %q: %w", cfg.Name, err)
		}
		payments, _ := res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM loan_configs WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete loan %d: %w", id, err)
		}
		slog.Info("deleted loan", "id", id, "name", cfg.Name, "payments", payments)
		return nil
	})
}

// SaveLoanPayments upserts imported payments keyed by loan and date.
func (s *SQLiteStorage) SaveLoanPayments(ctx context.Context, payments []model.LoanPayment) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePayments(payments); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO loan_payments (property_id, loan_name, date, principal_portion, interest_portion)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (property_id, loan_name, date) DO UPDATE SET
				principal_portion = excluded.principal_portion,
				interest_portion = excluded.interest_portion`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, p := range payments {
			if _, err := stmt.ExecContext(ctx, p.PropertyID, p.LoanName, p.Date.Format(dateLayout),
				p.PrincipalPortion.String(), p.InterestPortion.String()); err != nil {
				return fmt.Errorf("failed to save payment of %s on %s: %w", p.LoanName, p.Date.Format(dateLayout), err)
			}
		}
		return nil
	})
}

// ListLoanPayments returns imported payments ordered by date. An empty
// loanName returns the payments of every loan.
func (s *SQLiteStorage) ListLoanPayments(ctx context.Context, propertyID int64, loanName string, r *service.DateRange) ([]model.LoanPayment, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT id, property_id, loan_name, date, principal_portion, interest_portion
		FROM loan_payments WHERE property_id = ?`
	args := []any{propertyID}
	if loanName != "" {
		query += ` AND loan_name = ?`
		args = append(args, loanName)
	}
	if r != nil {
		query += ` AND date >= ? AND date <= ?`
		args = append(args, r.Start.Format(dateLayout), r.End.Format(dateLayout))
	}
	query += ` ORDER BY date, loan_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var payments []model.LoanPayment
	for rows.Next() {
		var p model.LoanPayment
		var date string
		if err := rows.Scan(&p.ID, &p.PropertyID, &p.LoanName, &date, &p.PrincipalPortion, &p.InterestPortion); err != nil {
			return nil, fmt.Errorf("failed to scan loan payment: %w", err)
		}
		if p.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loan payments: %w", err)
	}
	return payments, nil
}

func getLoan(ctx context.Context, q queryable, id int64) (*model.LoanConfig, error) {
	loans, err := queryLoans(ctx, q, `SELECT `+loanColumns+` FROM loan_configs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, fmt.Errorf("%w: loan %d", common.ErrNotFound, id)
	}
	return &loans[0], nil
}

func queryLoans(ctx context.Context, q queryable, query string, args ...any) ([]model.LoanConfig, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var loans []model.LoanConfig
	for rows.Next() {
		var c model.LoanConfig
		var mode string
		var start, end sql.NullString
		if err := rows.Scan(&c.ID, &c.PropertyID, &c.Name, &c.CreditAmount, &c.InterestRate,
			&c.DurationYears, &c.InitialDeferralMonths, &mode, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		c.DeferralMode = model.DeferralMode(mode)
		if c.LoanStartDate, err = parseOptionalDate(start); err != nil {
			return nil, err
		}
		if c.LoanEndDate, err = parseOptionalDate(end); err != nil {
			return nil, err
		}
		loans = append(loans, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}
	return loans, nil
}

func formatOptionalDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseOptionalDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
