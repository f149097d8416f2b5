package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/lmnp-ledger/internal/cli"
	"github.com/Veraticus/lmnp-ledger/internal/common"
	"github.com/Veraticus/lmnp-ledger/internal/ledger"
	"github.com/Veraticus/lmnp-ledger/internal/model"
	"github.com/Veraticus/lmnp-ledger/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file|dir|glob>...",
		Short: "Import transactions from OFX/QFX bank statements",
		Long: `Import the bank transactions of a property from OFX or QFX files.

Directories are searched recursively for .ofx and .qfx files. Every imported
row gets the level tags given by the flags; --rule tags rows whose label
contains a text with a specific level_1 instead. Rows already imported are
skipped, so a statement can safely be imported twice.`,
		Example: `  lmnp import -p "Studio Lyon" ~/Downloads/releve_2024.ofx --level3 Logement
  lmnp import ~/Banque/ --level1 Divers --rule "LOYER=Loyer" --rule "SYNDIC=Copropriété"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().String("level1", "", "level_1 tag of imported rows (default: import.level1)")
	cmd.Flags().String("level2", "", "level_2 tag of imported rows")
	cmd.Flags().String("level3", "", "level_3 tag of imported rows (default: import.level3)")
	cmd.Flags().StringArray("rule", nil, "label rule TEXT=LEVEL1, may be repeated")
	cmd.Flags().BoolP("dry-run", "d", false, "parse and report without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return common.NewUserError("no OFX/QFX files found to import", nil)
	}

	opts, err := importOptions(cmd)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	handler := cli.NewInterruptHandler(cmd.ErrOrStderr(), "Import", "Les fichiers déjà traités sont enregistrés ; relancez l'import, les doublons sont ignorés.")
	ctx := handler.HandleInterrupts(cmd.Context())

	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	opts.PropertyID = sess.property.ID

	slog.Info("importing OFX files", "files", len(files), "property", sess.property.Name, "dry_run", dryRun)

	bar := cli.NewProgressBar(cmd.ErrOrStderr(), len(files), "Importing statements...")
	res := importFiles(ctx, sess.ledger, ofx.NewParser(opts), files, dryRun, func() { _ = bar.Add(1) })
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s %d transaction(s) read from %d file(s), %d new, %d already known\n",
		cli.FolderIcon, res.parsed, len(files), res.inserted, res.parsed-res.inserted)
	if dryRun {
		fmt.Fprintln(out, cli.FormatInfo("Dry run: nothing was saved"))
	}

	if err := res.failures.ErrOrNil(); err != nil {
		for _, f := range res.failures.Failures {
			fmt.Fprintln(out, cli.FormatError(fmt.Sprintf("%s: %v", f.Item, f.Err)))
		}
		return err
	}
	return nil
}

type importResult struct {
	failures *common.BatchError
	parsed   int
	inserted int
}

// importFiles parses and saves each file on its own. A failing file is
// recorded and the others still go through.
func importFiles(ctx context.Context, svc *ledger.Service, parser *ofx.Parser, files []string, dryRun bool, step func()) importResult {
	res := importResult{failures: &common.BatchError{Op: "import"}}

	for _, path := range files {
		if ctx.Err() != nil {
			res.failures.Add(filepath.Base(path), ctx.Err())
			continue
		}

		txns, err := parseFile(ctx, parser, path)
		if err == nil && !dryRun && len(txns) > 0 {
			var n int
			n, err = svc.SaveTransactions(ctx, txns)
			res.inserted += n
		}
		if err != nil {
			slog.Error("failed to import file", "file", path, "error", err)
			res.failures.Add(filepath.Base(path), err)
		} else {
			res.failures.Succeeded++
			res.parsed += len(txns)
			slog.Debug("imported file", "file", filepath.Base(path), "transactions", len(txns))
		}

		if step != nil {
			step()
		}
	}
	return res
}

func parseFile(ctx context.Context, parser *ofx.Parser, path string) ([]model.Transaction, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return parser.ParseFile(ctx, f)
}

func importOptions(cmd *cobra.Command) (ofx.Options, error) {
	opts := ofx.Options{
		Level1: viper.GetString("import.level1"),
		Level2: viper.GetString("import.level2"),
		Level3: viper.GetString("import.level3"),
	}
	if v, _ := cmd.Flags().GetString("level1"); v != "" {
		opts.Level1 = v
	}
	if v, _ := cmd.Flags().GetString("level2"); v != "" {
		opts.Level2 = v
	}
	if v, _ := cmd.Flags().GetString("level3"); v != "" {
		opts.Level3 = v
	}

	rules, _ := cmd.Flags().GetStringArray("rule")
	for _, r := range rules {
		text, level1, ok := strings.Cut(r, "=")
		if !ok || strings.TrimSpace(text) == "" || strings.TrimSpace(level1) == "" {
			return opts, common.NewUserError(fmt.Sprintf("invalid rule %q, expected TEXT=LEVEL1", r), common.ErrValidation)
		}
		opts.Rules = append(opts.Rules, ofx.LabelRule{Contains: strings.TrimSpace(text), Level1: strings.TrimSpace(level1)})
	}
	return opts, nil
}

// collectFiles expands globs and walks directories for OFX/QFX files,
// returning each path once, sorted.
func collectFiles(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			slog.Warn("no files found matching pattern", "pattern", pattern)
			continue
		}

		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, err
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			err = filepath.WalkDir(m, func(path string, d fs.DirEntry, walkErr error) error {
				if walkErr != nil {
					return walkErr
				}
				if !d.IsDir() && isStatementFile(path) {
					add(path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", m, err)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func isStatementFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return true
	}
	return false
}
