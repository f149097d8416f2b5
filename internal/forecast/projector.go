package forecast

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/lmnp-ledger/internal/finmath"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

// Project compounds base over k years: base × (1 + rate)^k, on the cent.
func Project(base, rate decimal.Decimal, k int) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(rate)
	v := base
	for i := 0; i < k; i++ {
		v = v.Mul(factor)
	}
	return finmath.RoundMoney(v)
}

// Category is the input of one forecast row.
type Category struct {
	// Config is the saved projection base for the current year, if any.
	Config *model.AnnualForecastConfig
	// Level1 keys editable rows; calculated rows use their category name.
	Level1           string
	RealPreviousYear decimal.Decimal
	// RealCurrentYear is the amount booked so far this year.
	RealCurrentYear decimal.Decimal
	// Calculated rows come from providers and are never compounded.
	Calculated bool
}

// Row is one line of the forecast table.
type Row struct {
	Projected map[int]decimal.Decimal
	// Estimated is only set on editable rows, when pro-rata is enabled.
	Estimated        decimal.NullDecimal
	Level1           string
	RealPreviousYear decimal.Decimal
	RealCurrentYear  decimal.Decimal
	Base             decimal.Decimal
	GrowthRate       decimal.Decimal
	Calculated       bool
}

// Current returns the pro-rata estimate when there is one, else the actual.
func (r *Row) Current() decimal.Decimal {
	if r.Estimated.Valid {
		return r.Estimated.Decimal
	}
	return r.RealCurrentYear
}

// Table is the forecast of one statement for one property.
type Table struct {
	Settings model.ProRataSettings
	// Years are the projected years, Year+1 onward.
	Years []int
	Rows  []Row
	Year  int
}

// BuildTable extrapolates the current year when pro-rata is enabled and
// projects ForecastYears years when forecast is enabled.
//
// Editable rows without a saved config are projected from the current
// figure with no growth.
func BuildTable(settings model.ProRataSettings, year int, asOf time.Time, strategy ProRataStrategy, categories []Category) *Table {
	if strategy == nil {
		strategy = NoProRata{}
	}
	t := &Table{Settings: settings, Year: year}
	if settings.ForecastEnabled {
		n := min(max(settings.ForecastYears, 1), model.MaxForecastYears)
		for k := 1; k <= n; k++ {
			t.Years = append(t.Years, year+k)
		}
	}

	for _, c := range categories {
		row := Row{
			Level1:           c.Level1,
			Calculated:       c.Calculated,
			RealPreviousYear: c.RealPreviousYear,
			RealCurrentYear:  c.RealCurrentYear,
			Projected:        make(map[int]decimal.Decimal, len(t.Years)),
		}
		// calculated rows are already full-year figures
		if settings.ProrataEnabled && !c.Calculated {
			row.Estimated = decimal.NullDecimal{Decimal: strategy.Extrapolate(c.RealCurrentYear, year, asOf), Valid: true}
		}

		row.Base = row.Current()
		if c.Config != nil && !c.Calculated {
			row.Base = c.Config.BaseAnnualAmount
			row.GrowthRate = c.Config.AnnualGrowthRate
		}

		for k, y := range t.Years {
			if c.Calculated {
				row.Projected[y] = c.RealCurrentYear
				continue
			}
			row.Projected[y] = Project(row.Base, row.GrowthRate, k+1)
		}
		t.Rows = append(t.Rows, row)
	}

	return t
}

// Totals sums the projected rows per year.
func (t *Table) Totals() map[int]decimal.Decimal {
	out := make(map[int]decimal.Decimal, len(t.Years))
	for _, y := range t.Years {
		sum := decimal.Zero
		for i := range t.Rows {
			sum = sum.Add(t.Rows[i].Projected[y])
		}
		out[y] = sum
	}
	return out
}

// PrefillFromPreviousYear sets the base of every editable category to last
// year's actual, keeping saved growth rates.
func PrefillFromPreviousYear(propertyID int64, target model.Statement, year int, categories []Category) []model.AnnualForecastConfig {
	var out []model.AnnualForecastConfig
	for _, c := range categories {
		if c.Calculated {
			continue
		}
		cfg := model.AnnualForecastConfig{
			PropertyID:       propertyID,
			Year:             year,
			Level1:           c.Level1,
			TargetType:       target,
			BaseAnnualAmount: c.RealPreviousYear,
		}
		if c.Config != nil {
			cfg.AnnualGrowthRate = c.Config.AnnualGrowthRate
		}
		out = append(out, cfg)
	}
	return out
}

// ConfigsToSave returns the full set of editable rows of the year, changed
// or not, for a full-replace upsert.
func ConfigsToSave(propertyID int64, target model.Statement, year int, rows []Row) []model.AnnualForecastConfig {
	var out []model.AnnualForecastConfig
	for _, r := range rows {
		if r.Calculated {
			continue
		}
		out = append(out, model.AnnualForecastConfig{
			PropertyID:       propertyID,
			Year:             year,
			Level1:           r.Level1,
			TargetType:       target,
			BaseAnnualAmount: r.Base,
			AnnualGrowthRate: r.GrowthRate,
		})
	}
	return out
}
