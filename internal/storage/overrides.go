package storage

import (
	"context"
	"fmt"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// GetOverrides returns the result overrides of a property by year.
func (s *SQLiteStorage) GetOverrides(ctx context.Context, propertyID int64) ([]model.CompteResultatOverride, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, year, override_value FROM compte_resultat_overrides
		WHERE property_id = ? ORDER BY year`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var overrides []model.CompteResultatOverride
	for rows.Next() {
		var o model.CompteResultatOverride
		if err := rows.Scan(&o.PropertyID, &o.Year, &o.OverrideValue); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overrides: %w", err)
	}
	return overrides, nil
}

// UpsertOverride sets the override of a year.
func (s *SQLiteStorage) UpsertOverride(ctx context.Context, o model.CompteResultatOverride) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(o.PropertyID, "property_id"); err != nil {
		return err
	}
	if o.Year <= 0 {
		return fmt.Errorf("%w: year is required", common.ErrValidation)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compte_resultat_overrides (property_id, year, override_value)
		VALUES (?, ?, ?)
		ON CONFLICT (property_id, year) DO UPDATE SET override_value = excluded.override_value`,
		o.PropertyID, o.Year, o.OverrideValue.String())
	if err != nil {
		return fmt.Errorf("failed to save override: %w", err)
	}
	return nil
}

// DeleteOverride removes the override of a year.
func (s *SQLiteStorage) DeleteOverride(ctx context.Context, propertyID int64, year int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM compte_resultat_overrides WHERE property_id = ? AND year = ?`, propertyID, year)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: override for %d", common.ErrNotFound, year)
	}
	return nil
}
