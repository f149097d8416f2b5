package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// SetAnnualDepreciation records the depreciation booked for a year.
func (s *SQLiteStorage) SetAnnualDepreciation(ctx context.Context, entry model.DepreciationEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(entry.PropertyID, "property_id"); err != nil {
		return err
	}
	if entry.Year <= 0 {
		return fmt.Errorf("%w: year is required", common.ErrValidation)
	}
	if entry.Amount.IsNegative() {
		return fmt.Errorf("%w: depreciation cannot be negative", common.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO depreciation (property_id, year, amount) VALUES (?, ?, ?)
		ON CONFLICT (property_id, year) DO UPDATE SET amount = excluded.amount`,
		entry.PropertyID, entry.Year, entry.Amount.String())
	if err != nil {
		return fmt.Errorf("failed to save depreciation: %w", err)
	}
	return nil
}

// ListDepreciation returns the depreciation table of a property.
func (s *SQLiteStorage) ListDepreciation(ctx context.Context, propertyID int64) ([]model.DepreciationEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT property_id, year, amount FROM depreciation WHERE property_id = ? ORDER BY year`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query depreciation: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.DepreciationEntry
	for rows.Next() {
		var e model.DepreciationEntry
		if err := rows.Scan(&e.PropertyID, &e.Year, &e.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan depreciation: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating depreciation: %w", err)
	}
	return entries, nil
}

// GetAnnualDepreciation returns the depreciation of one year.
func (s *SQLiteStorage) GetAnnualDepreciation(ctx context.Context, propertyID int64, year int) (decimal.Decimal, bool, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, false, err
	}

	var amount decimal.Decimal
	err := s.db.QueryRowContext(ctx,
		`SELECT amount FROM depreciation WHERE property_id = ? AND year = ?`, propertyID, year).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to get depreciation: %w", err)
	}
	return amount, true, nil
}

// GetAccumulatedDepreciation sums the depreciation of every year up to and
// including year.
func (s *SQLiteStorage) GetAccumulatedDepreciation(ctx context.Context, propertyID int64, year int) (decimal.Decimal, bool, error) {
	entries, err := s.ListDepreciation(ctx, propertyID)
	if err != nil {
		return decimal.Zero, false, err
	}

	total := decimal.Zero
	found := false
	for _, e := range entries {
		if e.Year <= year {
			total = total.Add(e.Amount)
			found = true
		}
	}
	return total, found, nil
}
