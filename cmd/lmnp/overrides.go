package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
)

func overridesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Override the net result of a year",
		Long: `An override replaces the computed net result of a year in the cumulative
result and, with the effective view, in the bilan. Typical use: the figure
actually filed with the tax return.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List overrides",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			overrides, err := sess.store.GetOverrides(ctx, sess.property.ID)
			if err != nil {
				return err
			}
			if len(overrides) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No overrides"))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "YEAR\tRESULT")
			for _, o := range overrides {
				fmt.Fprintf(w, "%d\t%s\n", o.Year, cli.FormatEuro(o.OverrideValue))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "set <year> <amount>",
		Short:   "Set the net result of a year",
		Example: `  lmnp overrides set -- 2022 -1250,40`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := parseYear(args[0])
			if err != nil {
				return err
			}
			value, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.ledger.SetOverride(ctx, sess.property.ID, year, value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Result of %d set to %s", year, cli.FormatEuro(value))))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <year>",
		Short: "Go back to the computed net result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := parseYear(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.ledger.DeleteOverride(ctx, sess.property.ID, year); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Override of %d removed", year)))
			return nil
		},
	})

	return cmd
}

func depreciationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depreciation",
		Short: "Record the annual depreciation (dotation aux amortissements)",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the depreciation table with cumulated amounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			entries, err := sess.store.ListDepreciation(ctx, sess.property.ID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No depreciation recorded"))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "YEAR\tANNUAL\tCUMULATED")
			for _, e := range entries {
				cumulated, _, err := sess.store.GetAccumulatedDepreciation(ctx, sess.property.ID, e.Year)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", e.Year, cli.FormatEuro(e.Amount), cli.FormatEuro(cumulated))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <year> <amount>",
		Short: "Set the depreciation of a year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := parseYear(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			if amount.IsNegative() {
				return common.NewUserError("depreciation cannot be negative", nil)
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.ledger.SetDepreciation(ctx, sess.property.ID, year, amount); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Depreciation of %d set to %s", year, cli.FormatEuro(amount))))
			return nil
		},
	})

	return cmd
}
