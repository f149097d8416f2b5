package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/forecast"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

func forecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Extrapolate the current year and project the next ones",
		Long: `The forecast estimates the full current year from the amounts booked so far
(pro-rata) and projects every category over the following years from a base
amount and an annual growth rate. Calculated categories (loan interest,
depreciation, ...) are carried over unchanged.`,
	}

	cmd.PersistentFlags().StringP("statement", "s", "compte_resultat", "statement: compte_resultat (income) or bilan (balance)")
	cmd.PersistentFlags().Int("year", time.Now().Year(), "current year of the forecast")

	cmd.AddCommand(showForecastCmd())
	cmd.AddCommand(prefillForecastCmd())
	cmd.AddCommand(setForecastCmd())
	cmd.AddCommand(forecastSettingsCmd())

	return cmd
}

func forecastFlags(cmd *cobra.Command) (model.Statement, int, error) {
	st, err := statementFlag(cmd)
	if err != nil {
		return "", 0, err
	}
	year, _ := cmd.Flags().GetInt("year")
	if _, err := parseYear(strconv.Itoa(year)); err != nil {
		return "", 0, err
	}
	return st, year, nil
}

func showForecastCmd() *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the forecast table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, year, err := forecastFlags(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			table, err := sess.ledger.Forecast(ctx, sess.property.ID, st, year, time.Now())
			if err != nil {
				return err
			}
			report := forecastReport(st, table)
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderReport(report))

			if export {
				writer, err := newSheetsWriter(ctx)
				if err != nil {
					return err
				}
				return exportReports(ctx, cmd.OutOrStdout(), writer, report)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "also export to Google Sheets")

	return cmd
}

// forecastReport lays the table out with one column per actual, estimate
// and projected year.
func forecastReport(st model.Statement, t *forecast.Table) *service.Report {
	headers := []string{"Catégorie", fmt.Sprintf("Réel %d", t.Year-1), fmt.Sprintf("Réel %d", t.Year)}
	if t.Settings.ProrataEnabled {
		headers = append(headers, fmt.Sprintf("Estimé %d", t.Year))
	}
	headers = append(headers, "Base")
	for _, y := range t.Years {
		headers = append(headers, strconv.Itoa(y))
	}

	some := func(d decimal.Decimal) decimal.NullDecimal { return decimal.NewNullDecimal(d) }

	report := &service.Report{
		Title:   fmt.Sprintf("Prévisionnel %s %d", st.Label(), t.Year),
		Sheet:   "Prévisionnel " + st.Label(),
		Headers: headers,
	}
	for i := range t.Rows {
		r := &t.Rows[i]
		label := r.Level1
		if r.Calculated {
			label += " (calculé)"
		} else if !r.GrowthRate.IsZero() {
			label += fmt.Sprintf(" (%s %%/an)", r.GrowthRate.Mul(decimal.NewFromInt(100)).String())
		}

		cells := []decimal.NullDecimal{some(r.RealPreviousYear), some(r.RealCurrentYear)}
		if t.Settings.ProrataEnabled {
			cells = append(cells, some(r.Current()))
		}
		cells = append(cells, some(r.Base))
		for _, y := range t.Years {
			cells = append(cells, some(r.Projected[y]))
		}
		report.Rows = append(report.Rows, service.ReportRow{Label: label, Level: 1, Cells: cells})
	}

	if len(t.Years) > 0 {
		totals := t.Totals()
		cells := make([]decimal.NullDecimal, len(headers)-1)
		for i, y := range t.Years {
			cells[len(headers)-1-len(t.Years)+i] = some(totals[y])
		}
		report.Rows = append(report.Rows, service.ReportRow{Label: "Total", Bold: true, Cells: cells})
	} else {
		report.Warnings = append(report.Warnings, "Projection désactivée : lmnp forecast settings --projection")
	}
	return report
}

func prefillForecastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefill",
		Short: "Use last year's actuals as forecast bases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, year, err := forecastFlags(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			n, err := sess.ledger.PrefillForecast(ctx, sess.property.ID, st, year)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Prefilled %d categories from %d", n, year-1)))
			return nil
		},
	}
}

func setForecastCmd() *cobra.Command {
	var rate string

	cmd := &cobra.Command{
		Use:     "set <level_1> <base>",
		Short:   "Set the base amount and growth rate of a category",
		Example: `  lmnp forecast set Loyer 12000 --rate 2%
  lmnp forecast set --rate 3% -- Charges -1800`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, year, err := forecastFlags(cmd)
			if err != nil {
				return err
			}
			base, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			growth, err := parseRate(rate)
			if err != nil {
				return common.NewUserError("invalid --rate", err)
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.ledger.SetForecastBase(ctx, sess.property.ID, st, year, args[0], base, growth); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Forecast of %q saved", args[0])))
			return nil
		},
	}

	cmd.Flags().StringVar(&rate, "rate", "0", "annual growth rate (5% or 0.05)")

	return cmd
}

func forecastSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the pro-rata and projection settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := statementFlag(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			settings, err := sess.store.GetProRataSettings(ctx, sess.property.ID, st)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			changed := false
			for _, f := range []struct {
				name string
				dst  *bool
			}{
				{"prorata", &settings.ProrataEnabled},
				{"projection", &settings.ForecastEnabled},
			} {
				if flags.Changed(f.name) {
					*f.dst, _ = flags.GetBool(f.name)
					changed = true
				}
			}
			if flags.Changed("years") {
				settings.ForecastYears, _ = flags.GetInt("years")
				changed = true
			}

			if changed {
				settings.PropertyID = sess.property.ID
				settings.Target = st
				if err := sess.ledger.SaveProRataSettings(ctx, settings); err != nil {
					return err
				}
			}

			content := fmt.Sprintf("Pro-rata:   %s\nProjection: %s (%d years)",
				onOff(settings.ProrataEnabled), onOff(settings.ForecastEnabled), settings.ForecastYears)
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Prévisionnel "+st.Label(), content))
			return nil
		},
	}

	cmd.Flags().Bool("prorata", false, "extrapolate the current year")
	cmd.Flags().Bool("projection", false, "project the following years")
	cmd.Flags().Int("years", 3, fmt.Sprintf("projected years (1 to %d)", model.MaxForecastYears))

	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
