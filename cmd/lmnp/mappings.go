package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/mapping"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/service"
)

func mappingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Map ledger level_1 tags to statement categories",
		Long: `A mapping is a category of the compte de résultat or of the bilan together
with the level_1 tags whose transactions it sums. A tag belongs to at most one
category per statement. Special categories are computed (depreciation, loans,
bank balance, result) and take no tags.`,
	}

	cmd.PersistentFlags().StringP("statement", "s", "compte_resultat", "statement: compte_resultat (income) or bilan (balance)")

	cmd.AddCommand(listMappingsCmd())
	cmd.AddCommand(addMappingCmd())
	cmd.AddCommand(assignMappingCmd())
	cmd.AddCommand(deleteMappingCmd())
	cmd.AddCommand(resetMappingsCmd())
	cmd.AddCommand(overlapsCmd())

	return cmd
}

func statementFlag(cmd *cobra.Command) (model.Statement, error) {
	v, _ := cmd.Flags().GetString("statement")
	return parseStatementFlag(v)
}

func listMappingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the categories of a statement and unmapped tags",
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

			mappings, err := sess.store.ListMappings(ctx, sess.property.ID, st)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSUB-CATEGORY\tCATEGORY\tLEVEL_1")
			for _, m := range mappings {
				values := strings.Join(m.Level1Values, ", ")
				if m.IsSpecial {
					values = cli.SubtleStyle.Render("[" + string(m.SpecialSource) + "]")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", m.ID, m.Type, m.SubCategory, m.CategoryName, values)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			txns, err := sess.store.ListTransactions(ctx, sess.property.ID, service.TransactionFilter{})
			if err != nil {
				return err
			}
			if unclaimed := mapping.Unclaimed(mappings, txns); len(unclaimed) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, cli.FormatInfo("Unmapped level_1 tags: "+strings.Join(unclaimed, ", ")))
			}
			return nil
		},
	}
}

func addMappingCmd() *cobra.Command {
	var typeName, subName, name, special string
	var values []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a statement category",
		Example: `  lmnp mappings add --type produits --name Loyers --level1 Loyer,Caution
  lmnp mappings add -s bilan --type passif --sub dettes --name "Emprunt bancaire (capital restant dû)" --special loan_payments`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := statementFlag(cmd)
			if err != nil {
				return err
			}
			t, err := parseMappingType(st, typeName)
			if err != nil {
				return err
			}
			var sub model.SubCategory
			if subName != "" {
				if sub, err = parseSubCategory(t, subName); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			sess, err := openSession(ctx)
			if err != nil {
				return err
			}
			defer sess.Close()

			m := &model.CategoryMapping{
				PropertyID:    sess.property.ID,
				Statement:     st,
				Type:          t,
				SubCategory:   sub,
				CategoryName:  name,
				Level1Values:  values,
				IsSpecial:     special != "",
				SpecialSource: model.SpecialSource(special),
			}
			if err := sess.ledger.CreateMapping(ctx, m); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created category %q (id %d)", m.CategoryName, m.ID)))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "produits, charges, actif or passif")
	cmd.Flags().StringVar(&subName, "sub", "", "balance sheet sub-category (immobilise, circulant, capitaux, tresorerie, dettes)")
	cmd.Flags().StringVar(&name, "name", "", "category name")
	cmd.Flags().StringSliceVar(&values, "level1", nil, "level_1 tags summed by the category")
	cmd.Flags().StringVar(&special, "special", "", "provider of a computed category: amortizations, transactions, loan_payments, compte_resultat, compte_resultat_cumul")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func assignMappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <mapping-id> <level1>",
		Short: "Move a level_1 tag to a category, taking it from any other category",
		Args:  cobra.ExactArgs(2),
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

			if err := sess.ledger.AssignLevel1(ctx, id, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Assigned %q to mapping %d", args[1], id)))
			return nil
		},
	}
}

func deleteMappingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <mapping-id>",
		Short: "Delete a category",
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

			if err := sess.ledger.DeleteMapping(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted mapping %d", id)))
			return nil
		},
	}
}

func resetMappingsCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every category of a statement (a backup is taken first)",
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

			if !yes {
				ok, err := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).Confirm(ctx,
					fmt.Sprintf("Supprimer toutes les catégories %s de %q ?", st, sess.property.Name), false)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Aborted"))
					return nil
				}
			}

			manager, err := sess.store.NewBackupManager()
			if err != nil {
				return fmt.Errorf("failed to create backup manager: %w", err)
			}
			info, err := manager.Auto(ctx, "mappings-reset")
			if err != nil {
				return fmt.Errorf("failed to back up before reset: %w", err)
			}

			n, err := sess.ledger.ResetMappings(ctx, sess.property.ID, st)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted %d categories (backup %s)", n, info.ID)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func overlapsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overlaps",
		Short: "Report level_1 tags claimed by several categories",
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

			mappings, err := sess.store.ListMappings(ctx, sess.property.ID, st)
			if err != nil {
				return err
			}

			overlaps := mapping.FindOverlaps(mappings)
			if len(overlaps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("No overlapping tags"))
				return nil
			}
			for _, o := range overlaps {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(fmt.Sprintf("%s: %s", o.Level1, strings.Join(o.Categories, ", "))))
			}
			return nil
		},
	}
}

func scopeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Choose the level_3 tags a statement reads",
	}
	cmd.PersistentFlags().StringP("statement", "s", "compte_resultat", "statement: compte_resultat (income) or bilan (balance)")

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the level_3 scope",
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

			cfg, err := sess.store.GetStatementConfig(ctx, sess.property.ID, st)
			if err != nil {
				return err
			}
			if cfg.Empty() {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No level_3 scope: the statement is empty"))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(cfg.Level3Values, "\n"))
			}

			values, err := sess.store.ListLevelValues(ctx, sess.property.ID, 3)
			if err != nil {
				return err
			}
			if len(values) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("available: "+strings.Join(values, ", ")))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <level3>...",
		Short: "Replace the level_3 scope",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			err = sess.ledger.SetScope(ctx, &model.StatementConfig{
				PropertyID:   sess.property.ID,
				Statement:    st,
				Level3Values: args,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s now reads: %s", st, strings.Join(args, ", "))))
			return nil
		},
	})

	return cmd
}

var typeAliases = map[string]model.MappingType{
	"produits": model.TypeProduits,
	"charges":  model.TypeCharges,
	"actif":    model.TypeActif,
	"passif":   model.TypePassif,
}

var subCategoryAliases = map[string]model.SubCategory{
	"immobilise": model.SubActifImmobilise,
	"circulant":  model.SubActifCirculant,
	"capitaux":   model.SubCapitauxPropres,
	"tresorerie": model.SubTresoreriePassive,
	"dettes":     model.SubDettesFinancieres,
}

// parseMappingType accepts the full type name or its short alias.
func parseMappingType(st model.Statement, s string) (model.MappingType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, t := range model.TypesFor(st) {
		if strings.EqualFold(string(t), key) || typeAliases[key] == t {
			return t, nil
		}
	}
	return "", common.NewUserError(fmt.Sprintf("type %q is not defined for %s", s, st), common.ErrValidation)
}

func parseSubCategory(t model.MappingType, s string) (model.SubCategory, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, sc := range model.SubCategoriesFor(t) {
		if strings.EqualFold(string(sc), key) || subCategoryAliases[key] == sc {
			return sc, nil
		}
	}
	return "", common.NewUserError(fmt.Sprintf("sub-category %q does not belong to %s", s, t), common.ErrValidation)
}
