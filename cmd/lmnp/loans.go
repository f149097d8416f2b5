package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/loan"
	"github.com/Veraticus/lmnp-ledger/internal/model"
)

func loansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Manage property loans and their amortization schedules",
	}

	cmd.AddCommand(listLoansCmd())
	cmd.AddCommand(addLoanCmd())
	cmd.AddCommand(deleteLoanCmd())
	cmd.AddCommand(scheduleCmd())
	cmd.AddCommand(importPaymentsCmd())
	cmd.AddCommand(checkLoansCmd())

	return cmd
}

func listLoansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loans with their outstanding principal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			configs, err := sess.store.ListLoanConfigs(ctx, sess.property.ID)
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No loans configured"))
				return nil
			}
			summary, err := sess.ledger.LoanSummary(ctx, sess.property.ID)
			if err != nil {
				return err
			}

			now := time.Now()
			year := now.Year()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tNAME\tAMOUNT\tRATE\tYEARS\tSTART\tTERM\tDEFERRAL\tMONTHS LEFT\tREMAINING %d\n", year)
			for _, c := range configs {
				deferral := "—"
				if c.InitialDeferralMonths > 0 {
					deferral = fmt.Sprintf("%d m (%s)", c.InitialDeferralMonths, c.DeferralMode)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s %%\t%d\t%s\t%s\t%s\t%d\t%s\n",
					c.ID, c.Name, cli.FormatEuro(c.CreditAmount), c.InterestRate.String(),
					c.DurationYears, formatDate(c.LoanStartDate), formatTerm(&c), deferral,
					c.RemainingMonths(now), cli.FormatEuro(summary.LoanRemainingAt(c.Name, year)))
			}
			return w.Flush()
		},
	}
}

func addLoanCmd() *cobra.Command {
	var name, amount, rate, start, end, mode string
	var years, deferral int

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add or replace a loan",
		Example: `  lmnp loans add --name "Prêt immo" --amount 100000 --rate 2 --years 20 --start 2020-01-05`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := model.LoanConfig{
				Name:                  name,
				DurationYears:         years,
				InitialDeferralMonths: deferral,
				DeferralMode:          model.DeferralMode(mode),
			}
			var err error
			if cfg.CreditAmount, err = parseAmount(amount); err != nil {
				return common.NewUserError("invalid --amount", err)
			}
			if cfg.InterestRate, err = parseAmount(rate); err != nil {
				return common.NewUserError("invalid --rate, give the annual rate in percent", err)
			}
			if start != "" {
				d, err := parseDate(start)
				if err != nil {
					return common.NewUserError("invalid --start", err)
				}
				cfg.LoanStartDate = &d
			}
			if end != "" {
				d, err := parseDate(end)
				if err != nil {
					return common.NewUserError("invalid --end", err)
				}
				cfg.LoanEndDate = &d
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			cfg.PropertyID = sess.property.ID
			if err := sess.ledger.SaveLoanConfig(ctx, &cfg); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Saved loan %q", cfg.Name)))
			if !cfg.Schedulable() {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No start date or duration: no schedule will be derived"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "loan name (required)")
	cmd.Flags().StringVar(&amount, "amount", "", "credit amount (required)")
	cmd.Flags().StringVar(&rate, "rate", "0", "annual interest rate in percent")
	cmd.Flags().IntVar(&years, "years", 0, "duration in years")
	cmd.Flags().StringVar(&start, "start", "", "first payment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "last payment date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&deferral, "deferral-months", 0, "initial deferral in months")
	cmd.Flags().StringVar(&mode, "deferral-mode", string(model.DeferralInterestOnly), "deferral mode: interest_only or total")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func deleteLoanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a loan and its imported payments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.ledger.DeleteLoanConfig(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted loan %d", id)))
			return nil
		},
	}
}

func scheduleCmd() *cobra.Command {
	var yearFlag string

	cmd := &cobra.Command{
		Use:   "schedule <name>",
		Short: "Show the amortization schedule of a loan",
		Long: `Show the effective schedule of a loan: imported bank payments replace the
derived rows for every year they cover. Imported years are marked with *.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			years, err := parseYears(yearFlag)
			if err != nil {
				return err
			}
			only := make(map[int]bool, len(years))
			for _, y := range years {
				only[y] = true
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			name := args[0]
			rows, err := sess.ledger.LoanSchedule(ctx, sess.property.ID, name)
			if err != nil {
				return err
			}
			summary, err := sess.ledger.LoanSummary(ctx, sess.property.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "DATE\tPAYMENT\tPRINCIPAL\tINTEREST\t")
			for _, r := range rows {
				y := r.Date.Year()
				if len(only) > 0 && !only[y] {
					continue
				}
				mark := ""
				if summary.IsImported(name, y) {
					mark = "*"
				}
				fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t\n", r.Date.Format(dateLayout), mark,
					cli.FormatEuro(r.Total()), cli.FormatEuro(r.PrincipalPortion), cli.FormatEuro(r.InterestPortion))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			for _, y := range summary.Years() {
				if len(only) > 0 && !only[y] {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d: interest %s, remaining %s\n", y,
					cli.FormatEuro(summary.LoanInterestForYear(name, y)),
					cli.FormatEuro(summary.LoanRemainingAt(name, y)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&yearFlag, "year", "", "years to show (2021, 2021,2023 or 2020-2023)")

	return cmd
}

func importPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-payments <name> <file.csv>",
		Short: "Import the bank amortization table of a loan",
		Long: `Import actual payments from a CSV file with date, principal and interest
columns (separator ; or , and an optional header line). For every year the
file covers, the imported rows replace the derived schedule.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return common.NewUserError("cannot open payments file", err)
			}
			defer func() { _ = f.Close() }()

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			payments, err := loan.ParsePayments(f, sess.property.ID, args[0])
			if err != nil {
				return common.NewUserError("invalid payments file", err)
			}
			if err := sess.ledger.SaveLoanPayments(ctx, payments); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d payments for %q", len(payments), args[0])))
			return nil
		},
	}
}

func checkLoansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check loans against the ledger and the balance sheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			warnings, err := sess.ledger.ConsistencyWarnings(ctx, sess.property.ID)
			if err != nil {
				return err
			}
			if len(warnings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Everything is consistent"))
				return nil
			}
			for _, w := range warnings {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(w))
			}
			return nil
		},
	}
}

// formatTerm shows the start to end span in years, or a dash when either
// date is missing.
func formatTerm(c *model.LoanConfig) string {
	years, ok := c.YearFraction()
	if !ok {
		return "—"
	}
	return fmt.Sprintf("%.2f y", years)
}
