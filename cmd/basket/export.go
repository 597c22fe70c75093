package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/basket-rules/internal/cli"
	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/config"
	"github.com/Veraticus/basket-rules/internal/service"
	"github.com/Veraticus/basket-rules/internal/sheets"
)

// newReportWriter is swapped out in tests.
var newReportWriter = func(ctx context.Context) (service.ReportWriter, error) {
	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return nil, common.NewUserErrorWithHint(
			"Google Sheets is not configured",
			"Run 'basket auth sheets' or set sheets.service_account_path",
			fmt.Errorf("%w: %w", common.ErrMissingConfig, err))
	}
	return sheets.NewWriter(ctx, *cfg, slog.Default())
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a rule table to Google Sheets",
		Long: `Mine the rules for an outlet and quarter and write them to a Google
Sheets spreadsheet: a "Rules" tab with every rule and a "Recommendations"
tab with the best follow-up item for each antecedent.

Example:
  basket export --pos 101 --year 2021 --quarter 1 -m confidence -t 0.5`,
		PreRunE: bindAnalysisFlags,
		RunE:    runExport,
	}

	addFilterFlags(cmd)
	addAnalysisFlags(cmd)

	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	res, err := s.pipeline.Run(ctx, s.config)
	if err != nil {
		return analysisError(err)
	}
	if res.Rules.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("No rules meet the thresholds; exporting an empty table"))
	}

	writer, err := newReportWriter(ctx)
	if err != nil {
		return err
	}

	summary := &service.ReportSummary{
		GeneratedAt:  time.Now(),
		Filter:       s.config.Filter,
		Granularity:  s.config.Granularity,
		Metric:       s.config.Metric,
		MinSupport:   s.config.MinSupport,
		Threshold:    s.config.Threshold,
		Transactions: res.Matrix.Len(),
		Itemsets:     len(res.Itemsets),
	}

	slog.Info("Exporting rule table", "filter", s.config.Filter.String(), "rules", res.Rules.Len())
	if err := writer.Write(ctx, res.Rules, summary); err != nil {
		return common.NewUserError("Export to Google Sheets failed", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d rules to Google Sheets", res.Rules.Len())))
	return nil
}
