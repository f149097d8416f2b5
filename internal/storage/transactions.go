package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

const transactionColumns = `id, property_id, hash, date, amount, label, level_1, level_2, level_3, running_balance`

// SaveTransactions inserts transactions, ignoring ids already stored, and
// recomputes running balances from the earliest new row. It returns the
// number of rows actually inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, property_id, hash, date, amount, label, level_1, level_2, level_3
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		earliest := make(map[int64]time.Time)
		for _, txn := range transactions {
			if txn.Hash == "" {
				txn.Hash = txn.GenerateHash()
			}
			res, err := stmt.ExecContext(ctx,
				txn.ID,
				txn.PropertyID,
				txn.Hash,
				txn.Date.Format(dateLayout),
				txn.Amount.String(),
				txn.Label,
				txn.Level1,
				txn.Level2,
				txn.Level3,
			)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
				if e, ok := earliest[txn.PropertyID]; !ok || txn.Date.Before(e) {
					earliest[txn.PropertyID] = txn.Date
				}
			}
		}

		for propertyID, from := range earliest {
			if err := recomputeBalances(ctx, tx, propertyID, from); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.Debug("saved transactions", "count", len(transactions), "inserted", inserted)
	return inserted, nil
}

// ListTransactions returns a property's transactions ordered by date then id.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, propertyID int64, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE property_id = ?`
	args := []any{propertyID}

	if filter.Range != nil {
		if filter.Range.End.Before(filter.Range.Start) {
			return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, filter.Range.End, filter.Range.Start)
		}
		query += ` AND date >= ? AND date <= ?`
		args = append(args, filter.Range.Start.Format(dateLayout), filter.Range.End.Format(dateLayout))
	}
	if filter.Level1 != "" {
		query += ` AND level_1 = ?`
		args = append(args, filter.Level1)
	}
	if filter.Level3 != "" {
		query += ` AND level_3 = ?`
		args = append(args, filter.Level3)
	}

	query += ` ORDER BY date ASC, id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	return queryTransactions(ctx, s.db, query, args...)
}

// GetTransaction returns a transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return getTransaction(ctx, s.db, id)
}

// UpdateTransaction applies a manual edit and recomputes running balances
// from the earlier of the old and new dates.
func (s *SQLiteStorage) UpdateTransaction(ctx context.Context, id string, edit model.TransactionEdit) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	if edit.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}

	var updated model.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = edit.Apply(*current)
		updated.Hash = updated.GenerateHash()

		_, err = tx.ExecContext(ctx, `
			UPDATE transactions
			SET date = ?, amount = ?, label = ?, level_1 = ?, level_2 = ?, level_3 = ?, hash = ?
			WHERE id = ?`,
			updated.Date.Format(dateLayout),
			updated.Amount.String(),
			updated.Label,
			updated.Level1,
			updated.Level2,
			updated.Level3,
			updated.Hash,
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", id, err)
		}

		from := current.Date
		if updated.Date.Before(from) {
			from = updated.Date
		}
		if err := recomputeBalances(ctx, tx, current.PropertyID, from); err != nil {
			return err
		}

		fresh, err := getTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		updated = *fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteTransaction removes a transaction and recomputes the running
// balances of the rows after it.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transaction %s: %w", id, err)
		}
		return recomputeBalances(ctx, tx, current.PropertyID, current.Date)
	})
}

// GetRunningBalance returns the balance after the last transaction on or
// before asOf, zero when there is none.
func (s *SQLiteStorage) GetRunningBalance(ctx context.Context, propertyID int64, asOf time.Time) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}
	return balanceBefore(ctx, s.db, propertyID, asOf.AddDate(0, 0, 1))
}

// ListLevelValues returns the distinct non-empty values of level_1, level_2
// or level_3 for a property.
func (s *SQLiteStorage) ListLevelValues(ctx context.Context, propertyID int64, level int) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var column string
	switch level {
	case 1:
		column = "level_1"
	case 2:
		column = "level_2"
	case 3:
		column = "level_3"
	default:
		return nil, fmt.Errorf("%w: level must be 1, 2 or 3, got %d", common.ErrValidation, level)
	}

	// #nosec G202 - column comes from the switch above
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM transactions WHERE property_id = ? AND `+column+` != '' ORDER BY `+column,
		propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s values: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s value: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// balanceBefore returns the running balance of the last row dated strictly
// before the given day.
func balanceBefore(ctx context.Context, q queryable, propertyID int64, day time.Time) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx, `
		SELECT running_balance FROM transactions
		WHERE property_id = ? AND date < ?
		ORDER BY date DESC, id DESC
		LIMIT 1`,
		propertyID, day.Format(dateLayout)).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get running balance: %w", err)
	}
	return balance, nil
}

// recomputeBalances rewrites running_balance for every row of the property
// dated on or after from, in (date, id) order.
func recomputeBalances(ctx context.Context, tx *sql.Tx, propertyID int64, from time.Time) error {
	balance, err := balanceBefore(ctx, tx, propertyID, from)
	if err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, amount FROM transactions
		WHERE property_id = ? AND date >= ?
		ORDER BY date ASC, id ASC`,
		propertyID, from.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to query transactions for balance: %w", err)
	}

	type change struct {
		balance decimal.Decimal
		id      string
	}
	var changes []change
	for rows.Next() {
		var id string
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan transaction amount: %w", err)
		}
		balance = balance.Add(amount)
		changes = append(changes, change{id: id, balance: balance})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("error iterating transactions: %w", err)
	}
	_ = rows.Close()

	for _, c := range changes {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET running_balance = ? WHERE id = ?`, c.balance.String(), c.id); err != nil {
			return fmt.Errorf("failed to update running balance of %s: %w", c.id, err)
		}
	}

	slog.Debug("recomputed running balances", "property_id", propertyID, "from", from.Format(dateLayout), "rows", len(changes))
	return nil
}

func getTransaction(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	txns, err := queryTransactions(ctx, q, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return &txns[0], nil
}

func queryTransactions(ctx context.Context, q queryable, query string, args ...any) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var date string
		if err := rows.Scan(
			&txn.ID,
			&txn.PropertyID,
			&txn.Hash,
			&date,
			&txn.Amount,
			&txn.Label,
			&txn.Level1,
			&txn.Level2,
			&txn.Level3,
			&txn.RunningBalance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if txn.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", txn.ID, err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored date %q: %w", s, err)
	}
	return t, nil
}
