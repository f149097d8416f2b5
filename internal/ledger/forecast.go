package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/events"
	"github.com/Veraticus/lmnp-ledger/internal/forecast"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/statement"
)

// Forecast builds the forecast table of a statement for year, with the
// pro-rata estimate computed as of asOf.
func (s *Service) Forecast(ctx context.Context, propertyID int64, target model.Statement, year int, asOf time.Time) (*forecast.Table, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: undefined statement %q", common.ErrValidation, target)
	}
	settings, err := s.storage.GetProRataSettings(ctx, propertyID, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load pro-rata settings: %w", err)
	}
	categories, err := s.forecastCategories(ctx, propertyID, target, year)
	if err != nil {
		return nil, err
	}
	return forecast.BuildTable(*settings, year, asOf, s.strategy, categories), nil
}

// PrefillForecast saves last year's actuals as the base of every editable
// category, keeping growth rates. It returns the number of rows written.
func (s *Service) PrefillForecast(ctx context.Context, propertyID int64, target model.Statement, year int) (int, error) {
	categories, err := s.forecastCategories(ctx, propertyID, target, year)
	if err != nil {
		return 0, err
	}
	configs := forecast.PrefillFromPreviousYear(propertyID, target, year, categories)
	if len(configs) == 0 {
		return 0, nil
	}
	if err := s.storage.UpsertForecastConfigs(ctx, configs); err != nil {
		return 0, fmt.Errorf("failed to save forecast: %w", err)
	}
	s.bus.Emit(events.ForecastChanged, module, propertyID)
	return len(configs), nil
}

// SaveForecast writes every editable row of the table, changed or not.
func (s *Service) SaveForecast(ctx context.Context, propertyID int64, target model.Statement, table *forecast.Table) error {
	if table == nil {
		return fmt.Errorf("%w: forecast table is nil", common.ErrValidation)
	}
	configs := forecast.ConfigsToSave(propertyID, target, table.Year, table.Rows)
	if len(configs) == 0 {
		return nil
	}
	if err := s.storage.UpsertForecastConfigs(ctx, configs); err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	slog.Info("saved forecast", "property_id", propertyID, "target", target, "year", table.Year, "rows", len(configs))
	s.bus.Emit(events.ForecastChanged, module, propertyID)
	return nil
}

// SetForecastBase changes the base and growth rate of one editable row and
// saves the full row set of the year.
func (s *Service) SetForecastBase(ctx context.Context, propertyID int64, target model.Statement, year int, level1 string, base, rate decimal.Decimal) error {
	table, err := s.Forecast(ctx, propertyID, target, year, time.Now())
	if err != nil {
		return err
	}

	found := false
	for i := range table.Rows {
		row := &table.Rows[i]
		if row.Level1 != level1 {
			continue
		}
		if row.Calculated {
			return fmt.Errorf("%w: %q is calculated and cannot be forecast", common.ErrValidation, level1)
		}
		row.Base = base
		row.GrowthRate = rate
		found = true
	}
	if !found {
		return fmt.Errorf("%w: no forecast row %q", common.ErrNotFound, level1)
	}
	return s.SaveForecast(ctx, propertyID, target, table)
}

// SaveProRataSettings stores the pro-rata and forecast toggles.
func (s *Service) SaveProRataSettings(ctx context.Context, settings *model.ProRataSettings) error {
	if err := s.storage.SaveProRataSettings(ctx, settings); err != nil {
		return err
	}
	s.bus.Emit(events.ForecastChanged, module, settings.PropertyID)
	return nil
}

// forecastCategories lists the editable rows (one per mapped level_1
// value, in mapping order) followed by the calculated rows of the
// statement.
func (s *Service) forecastCategories(ctx context.Context, propertyID int64, target model.Statement, year int) ([]forecast.Category, error) {
	sn, err := s.snapshot(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	saved, err := s.storage.GetForecastConfigs(ctx, propertyID, year, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast configs: %w", err)
	}
	byLevel1 := make(map[string]*model.AnnualForecastConfig, len(saved))
	for i := range saved {
		byLevel1[saved[i].Level1] = &saved[i]
	}

	scope := sn.scope(target)
	actuals := make(map[string]map[int]decimal.Decimal)
	for i := range sn.transactions {
		txn := &sn.transactions[i]
		if !scope.InScope(txn.Level3) {
			continue
		}
		y := txn.Year()
		if y != year && y != year-1 {
			continue
		}
		if actuals[txn.Level1] == nil {
			actuals[txn.Level1] = make(map[int]decimal.Decimal, 2)
		}
		actuals[txn.Level1][y] = actuals[txn.Level1][y].Add(txn.Amount)
	}

	var categories []forecast.Category
	seen := make(map[string]bool)
	for _, m := range sn.mappings(target) {
		if m.IsSpecial {
			continue
		}
		for _, v := range m.Level1Values {
			if seen[v] {
				continue
			}
			seen[v] = true
			categories = append(categories, forecast.Category{
				Level1:           v,
				Config:           byLevel1[v],
				RealPreviousYear: actuals[v][year-1],
				RealCurrentYear:  actuals[v][year],
			})
		}
	}

	calculated, err := s.calculatedCategories(ctx, sn, propertyID, target, year)
	if err != nil {
		return nil, err
	}
	return append(categories, calculated...), nil
}

// calculatedCategories turns the special lines of a statement into rows
// carried flat. Income charges are negated to match transaction signs.
func (s *Service) calculatedCategories(ctx context.Context, sn *snapshot, propertyID int64, target model.Statement, year int) ([]forecast.Category, error) {
	years := []int{year - 1, year}
	var out []forecast.Category
	add := func(line *statement.Line, sign decimal.Decimal) {
		out = append(out, forecast.Category{
			Level1:           line.Category,
			Calculated:       true,
			RealPreviousYear: line.Value(year - 1).Mul(sign),
			RealCurrentYear:  line.Value(year).Mul(sign),
		})
	}

	if target == model.StatementIncome {
		is, err := s.incomeStatement(ctx, sn, propertyID, years)
		if err != nil {
			return nil, err
		}
		for _, section := range is.Sections {
			sign := decimal.NewFromInt(1)
			if section.Type == model.TypeCharges {
				sign = decimal.NewFromInt(-1)
			}
			for i := range section.Lines {
				if section.Lines[i].Special() {
					add(&section.Lines[i], sign)
				}
			}
		}
		return out, nil
	}

	bs, err := s.BalanceSheet(ctx, propertyID, years, statement.ViewEffective)
	if err != nil {
		return nil, err
	}
	for _, side := range []statement.Side{bs.Actif, bs.Passif} {
		for _, sub := range side.SubSections {
			for i := range sub.Lines {
				if sub.Lines[i].Special() {
					add(&sub.Lines[i], decimal.NewFromInt(1))
				}
			}
		}
	}
	return out, nil
}
