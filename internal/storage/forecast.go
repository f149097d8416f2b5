package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// GetForecastConfigs returns the saved projection bases of a year.
func (s *SQLiteStorage) GetForecastConfigs(ctx context.Context, propertyID int64, year int, target model.Statement) ([]model.AnnualForecastConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateStatement(target); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT property_id, year, level_1, target_type, base_annual_amount, annual_growth_rate
		FROM annual_forecast_configs
		WHERE property_id = ? AND year = ? AND target_type = ?
		ORDER BY level_1`, propertyID, year, string(target))
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var configs []model.AnnualForecastConfig
	for rows.Next() {
		var c model.AnnualForecastConfig
		var tt string
		if err := rows.Scan(&c.PropertyID, &c.Year, &c.Level1, &tt, &c.BaseAnnualAmount, &c.AnnualGrowthRate); err != nil {
			return nil, fmt.Errorf("failed to scan forecast config: %w", err)
		}
		c.TargetType = model.Statement(tt)
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating forecast configs: %w", err)
	}
	return configs, nil
}

// UpsertForecastConfigs writes every config in one transaction, keyed by
// (property, year, level_1, target).
func (s *SQLiteStorage) UpsertForecastConfigs(ctx context.Context, configs []model.AnnualForecastConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(configs) == 0 {
		return nil
	}
	if err := validateForecastConfigs(configs); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO annual_forecast_configs (
				property_id, year, level_1, target_type, base_annual_amount, annual_growth_rate
			) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (property_id, year, level_1, target_type) DO UPDATE SET
				base_annual_amount = excluded.base_annual_amount,
				annual_growth_rate = excluded.annual_growth_rate`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, c := range configs {
			if _, err := stmt.ExecContext(ctx, c.PropertyID, c.Year, c.Level1, string(c.TargetType),
				c.BaseAnnualAmount.String(), c.AnnualGrowthRate.String()); err != nil {
				return fmt.Errorf("failed to save forecast config %s: %w", c.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Debug("saved forecast configs", "count", len(configs))
	return nil
}

// GetProRataSettings returns the stored settings or the defaults.
func (s *SQLiteStorage) GetProRataSettings(ctx context.Context, propertyID int64, target model.Statement) (*model.ProRataSettings, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateStatement(target); err != nil {
		return nil, err
	}

	settings := model.DefaultProRataSettings(propertyID, target)
	err := s.db.QueryRowContext(ctx, `
		SELECT prorata_enabled, forecast_enabled, forecast_years
		FROM prorata_settings WHERE property_id = ? AND target = ?`,
		propertyID, string(target)).Scan(&settings.ProrataEnabled, &settings.ForecastEnabled, &settings.ForecastYears)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get pro-rata settings: %w", err)
	}
	return &settings, nil
}

// SaveProRataSettings stores the toggles of one statement.
func (s *SQLiteStorage) SaveProRataSettings(ctx context.Context, settings *model.ProRataSettings) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if settings == nil {
		return fmt.Errorf("%w: settings", ErrNilParameter)
	}
	if err := validateID(settings.PropertyID, "property_id"); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prorata_settings (property_id, target, prorata_enabled, forecast_enabled, forecast_years)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (property_id, target) DO UPDATE SET
			prorata_enabled = excluded.prorata_enabled,
			forecast_enabled = excluded.forecast_enabled,
			forecast_years = excluded.forecast_years`,
		settings.PropertyID, string(settings.Target), settings.ProrataEnabled, settings.ForecastEnabled, settings.ForecastYears)
	if err != nil {
		return fmt.Errorf("failed to save pro-rata settings: %w", err)
	}
	return nil
}
