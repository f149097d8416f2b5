package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List and edit ledger transactions",
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(addTransactionCmd())
	cmd.AddCommand(editTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())

	return cmd
}

func listTransactionsCmd() *cobra.Command {
	var year, limit int
	var level1, level3 string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions with their running balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			filter := service.TransactionFilter{Level1: level1, Level3: level3, Limit: limit}
			if year != 0 {
				r := service.YearRange(year)
				filter.Range = &r
			}

			txns, err := sess.store.ListTransactions(ctx, sess.property.ID, filter)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("No transactions."))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "DATE\tAMOUNT\tBALANCE\tLEVEL_1\tLEVEL_3\tLABEL\tID\t")
			for _, t := range txns {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
					t.Date.Format(dateLayout), cli.FormatEuro(t.Amount), cli.FormatEuro(t.RunningBalance),
					t.Level1, t.Level3, t.Label, t.ID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "only this year")
	cmd.Flags().StringVar(&level1, "level1", "", "only this level_1 tag")
	cmd.Flags().StringVar(&level3, "level3", "", "only this level_3 tag")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows")

	return cmd
}

func addTransactionCmd() *cobra.Command {
	var level1, level2, level3 string

	cmd := &cobra.Command{
		Use:   "add <date> <amount> <label>",
		Short: "Add a manual transaction (credits positive, debits negative)",
		Long: `Add a manual transaction. Put negative amounts after "--" so they are not
read as flags.`,
		Example: `  lmnp transactions add --level1 Travaux --level3 Logement -- 2024-03-31 -450 "Facture plombier"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			txn := model.Transaction{
				ID:         "manual-" + uuid.NewString(),
				PropertyID: sess.property.ID,
				Date:       date,
				Amount:     amount,
				Label:      args[2],
				Level1:     level1,
				Level2:     level2,
				Level3:     level3,
			}
			n, err := sess.ledger.SaveTransactions(ctx, []model.Transaction{txn})
			if err != nil {
				return err
			}
			if n == 0 {
				return common.NewUserError("an identical transaction already exists", common.ErrDuplicateEntry)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Added transaction "+txn.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&level1, "level1", "", "level_1 tag")
	cmd.Flags().StringVar(&level2, "level2", "", "level_2 tag")
	cmd.Flags().StringVar(&level3, "level3", "", "level_3 tag")

	return cmd
}

func editTransactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edit, err := transactionEdit(cmd)
			if err != nil {
				return err
			}
			if edit.IsEmpty() {
				return common.NewUserError("nothing to change, pass at least one of --date --amount --label --level1 --level2 --level3", nil)
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			txn, err := sess.ledger.UpdateTransaction(ctx, args[0], edit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Updated %s: %s %s %s",
				txn.ID, txn.Date.Format(dateLayout), cli.FormatEuro(txn.Amount), txn.Level1)))
			return nil
		},
	}

	cmd.Flags().String("date", "", "new date (YYYY-MM-DD)")
	cmd.Flags().String("amount", "", "new signed amount")
	cmd.Flags().String("label", "", "new label")
	cmd.Flags().String("level1", "", "new level_1 tag")
	cmd.Flags().String("level2", "", "new level_2 tag")
	cmd.Flags().String("level3", "", "new level_3 tag")

	return cmd
}

// transactionEdit builds an edit from the flags that were set, so that a
// flag explicitly set to "" clears the field.
func transactionEdit(cmd *cobra.Command) (model.TransactionEdit, error) {
	var edit model.TransactionEdit
	flags := cmd.Flags()

	if flags.Changed("date") {
		v, _ := flags.GetString("date")
		d, err := parseDate(v)
		if err != nil {
			return edit, err
		}
		edit.Date = &d
	}
	if flags.Changed("amount") {
		v, _ := flags.GetString("amount")
		a, err := parseAmount(v)
		if err != nil {
			return edit, err
		}
		edit.Amount = &a
	}
	for name, dst := range map[string]**string{
		"label":  &edit.Label,
		"level1": &edit.Level1,
		"level2": &edit.Level2,
		"level3": &edit.Level3,
	} {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			*dst = &v
		}
	}
	return edit, nil
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.ledger.DeleteTransaction(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted transaction "+args[0]))
			return nil
		},
	}
}
