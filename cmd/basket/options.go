package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/basket-rules/internal/cli"
)

func optionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the outlets, years and quarters on record",
		RunE:  runOptions,
	}

	cmd.Flags().Bool("imports", false, "Also list past imports")

	return cmd
}

func runOptions(cmd *cobra.Command, _ []string) error {
	showImports, _ := cmd.Flags().GetBool("imports")

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sel, err := store.Selection(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle(cli.FolderIcon+" Available selections"))
	fmt.Fprintln(out, cli.RenderSelection(sel))

	if showImports {
		batches, err := store.Imports(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, cli.FormatTitle("Imports"))
		fmt.Fprintln(out, cli.RenderImports(batches))
	}

	return nil
}
