package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/config"
	"github.com/Veraticus/lmnp-ledger/internal/service"
	"github.com/Veraticus/lmnp-ledger/internal/sheets"
	"github.com/Veraticus/lmnp-ledger/internal/statement"
)

func reportCmd() *cobra.Command {
	var yearsFlag, viewFlag string
	var export bool

	cmd := &cobra.Command{
		Use:   "report [income|balance|all]",
		Short: "Show the compte de résultat and the bilan",
		Long: `Show the financial statements of a property, one column per year. Use
--view net to show the computed net result in the bilan instead of the
overridden one. With --export the same tables are written to Google Sheets,
one tab per statement.`,
		Example: `  lmnp report income --years 2020-2023
  lmnp report all --export`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"income", "balance", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "all"
			if len(args) == 1 {
				which = args[0]
			}
			if which != "income" && which != "balance" && which != "all" {
				return common.NewUserError(fmt.Sprintf("unknown report %q, expected income, balance or all", which), nil)
			}
			years, err := parseYears(yearsFlag)
			if err != nil {
				return err
			}
			view, err := statement.ParseResultView(viewFlag)
			if err != nil {
				return common.NewUserError("--view must be effective or net", err)
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			var reports []*service.Report
			if which != "balance" {
				is, err := sess.ledger.IncomeStatement(ctx, sess.property.ID, years)
				if err != nil {
					return err
				}
				reports = append(reports, statement.IncomeReport(is))
			}
			if which != "income" {
				bs, err := sess.ledger.BalanceSheet(ctx, sess.property.ID, years, view)
				if err != nil {
					return err
				}
				reports = append(reports, statement.BalanceReport(bs))
			}

			out := cmd.OutOrStdout()
			for _, r := range reports {
				fmt.Fprintln(out, cli.RenderReport(r))
				fmt.Fprintln(out)
			}

			if !export {
				return nil
			}
			writer, err := newSheetsWriter(ctx)
			if err != nil {
				return err
			}
			return exportReports(ctx, out, writer, reports...)
		},
	}

	cmd.Flags().StringVar(&yearsFlag, "years", "", "years to show (2021, 2021,2023 or 2020-2023), default all")
	cmd.Flags().StringVar(&viewFlag, "view", string(statement.ViewEffective), "result shown in the bilan: effective or net")
	cmd.Flags().BoolVar(&export, "export", false, "also export to Google Sheets")

	return cmd
}

// newSheetsWriter builds a Google Sheets writer from the configuration.
func newSheetsWriter(ctx context.Context) (*sheets.Writer, error) {
	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, common.NewUserError("Google Sheets is not configured, run: lmnp auth sheets", err)
	}
	return sheets.NewWriter(ctx, *cfg, slog.Default())
}

// exportReports writes every report, continuing past failures.
func exportReports(ctx context.Context, out io.Writer, writer service.ReportWriter, reports ...*service.Report) error {
	failures := &common.BatchError{Op: "export"}
	for _, r := range reports {
		if err := writer.Write(ctx, r); err != nil {
			failures.Add(r.Sheet, fmt.Errorf("%w: %w", common.ErrExportFailed, err))
			fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("Export of %q failed: %v", r.Sheet, err)))
			continue
		}
		failures.Succeeded++
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s Exported %q", cli.ChartIcon, r.Sheet)))
	}
	return failures.ErrOrNil()
}
