package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/basket-rules/internal/cli"
	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/ingest"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import sell-out exports (CSV or XLSX)",
		Long: `Import point-of-sale sell-out exports into the local database.

Each file needs the columns Date, Point-of-Sale_ID, ProductFamily_ID and
ProductCategory_ID; Sell-out units, Year and Quarter are optional. Rows
already imported are skipped, so re-importing a file is safe.

Examples:
  # Import a single export
  basket import ~/Downloads/sellout_2021.xlsx

  # Import every CSV in a directory
  basket import ~/Downloads/exports/*.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Parse files without saving")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	files, err := expandFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return common.NewUserErrorWithHint("No files found to import",
			"Pass CSV or XLSX exports, e.g. 'basket import sales/*.csv'", common.ErrNoRecords)
	}

	slog.Info("Importing sales exports", "file_count", len(files), "dry_run", dryRun)

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), "import", "Run the same import again; stored rows are skipped.")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	progress := cli.NewImportProgress(cmd.ErrOrStderr(), len(files))
	failed := 0

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		result, readErr := ingest.ReadFile(ctx, path)
		if readErr != nil {
			if errors.Is(readErr, ctx.Err()) {
				break
			}
			failed++
			common.LogError(readErr, "Failed to parse file", common.Fields{"file": path})
			continue
		}
		if result.Skipped > 0 {
			slog.Warn("Skipped unreadable rows", "file", filepath.Base(path), "skipped", result.Skipped)
		}

		inserted := 0
		if !dryRun {
			inserted, err = store.SaveSalesRecords(ctx, result.Records)
			if err != nil {
				return fmt.Errorf("failed to save records from %s: %w", path, err)
			}
			if err := store.RecordImport(ctx, filepath.Base(path), len(result.Records), inserted); err != nil {
				return err
			}
		}

		slog.Debug("Imported file",
			"file", filepath.Base(path),
			"records", len(result.Records),
			"inserted", inserted)
		progress.FileDone(path, len(result.Records), inserted)
	}

	if interrupts.WasInterrupted() {
		return nil
	}

	progress.Finish()

	if failed == len(files) {
		return common.NewUserError("None of the files could be imported", common.ErrNoRecords)
	}
	if dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Dry run: nothing was saved"))
	}
	return nil
}

// expandFiles resolves glob patterns, keeping plain paths that exist.
func expandFiles(args []string) ([]string, error) {
	var files []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	return files, nil
}
