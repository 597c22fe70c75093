package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/cli"
	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/pipeline"
	"github.com/Veraticus/basket-rules/internal/storage"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show association rules for an outlet and quarter",
		Long: `Mine the sales of one point of sale in one quarter and print the
association rules between item pairs, best first.

Examples:
  # Rules by lift for outlet 101 in Q1 2021
  basket rules --pos 101 --year 2021 --quarter 1

  # Category level, ranked by confidence of at least 0.6
  basket rules --pos 101 --year 2021 --quarter 1 -g category -m confidence -t 0.6`,
		PreRunE: bindAnalysisFlags,
		RunE:    runRules,
	}

	addFilterFlags(cmd)
	addAnalysisFlags(cmd)
	cmd.Flags().IntP("limit", "n", 0, "show at most this many rules (0 for all)")

	return cmd
}

func lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Show the metrics of one rule",
		Long: `Look up the support, confidence and lift of the rule
{antecedent} -> {consequent}. Items left out are picked interactively.

Example:
  basket lookup --pos 101 --year 2021 --quarter 1 --antecedent X --consequent Y`,
		PreRunE: bindAnalysisFlags,
		RunE:    runLookup,
	}

	addFilterFlags(cmd)
	addAnalysisFlags(cmd)
	cmd.Flags().StringP("antecedent", "a", "", "item already in the basket")
	cmd.Flags().StringP("consequent", "c", "", "item to recommend")

	return cmd
}

// analysisSession is what rules, lookup and export share: an open store, the
// resolved configuration and a pipeline over the store. One picker reads
// every answer so buffered stdin is not lost between prompts.
type analysisSession struct {
	store    *storage.SQLiteStorage
	pipeline *pipeline.Pipeline
	picker   *cli.Picker
	config   pipeline.Config
}

func openSession(cmd *cobra.Command) (*analysisSession, error) {
	a, err := loadAnalysis()
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}

	sel, err := store.Selection(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	picker := cli.NewPicker(cmd.InOrStdin(), cmd.OutOrStdout())
	filter, err := resolveFilter(cmd, picker, sel)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	p, err := newPipeline(store, a, nil)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &analysisSession{store: store, pipeline: p, picker: picker, config: a.Config(filter)}, nil
}

func (s *analysisSession) close() {
	if err := s.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func runRules(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	res, err := s.pipeline.Run(cmd.Context(), s.config)
	if err != nil {
		return analysisError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatTitle(fmt.Sprintf("%s %s · %d Q%d · %s",
		cli.BasketIcon, s.config.Filter.PointOfSaleID, s.config.Filter.Year, s.config.Filter.Quarter,
		s.config.Granularity.Label())))
	fmt.Fprintf(out, "%d transactions, %d frequent itemsets (min support %.2f)\n\n",
		res.Matrix.Len(), len(res.Itemsets), s.config.MinSupport)
	fmt.Fprintln(out, cli.RenderRules(res.Rules, limit))

	return nil
}

func runLookup(cmd *cobra.Command, _ []string) error {
	antecedent, _ := cmd.Flags().GetString("antecedent")
	consequent, _ := cmd.Flags().GetString("consequent")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	if antecedent == "" || consequent == "" {
		items, itemsErr := s.pipeline.Items(ctx, s.config.Filter, s.config.Granularity)
		if itemsErr != nil {
			return analysisError(itemsErr)
		}
		if antecedent, err = chooseItem(ctx, s.picker, "Antecedent", antecedent, items); err != nil {
			return err
		}
		if consequent, err = chooseItem(ctx, s.picker, "Consequent", consequent, without(items, antecedent)); err != nil {
			return err
		}
	}

	m, err := s.pipeline.Lookup(ctx, s.config, antecedent, consequent)
	switch {
	case errors.Is(err, basket.ErrRuleNotFound):
		slog.Debug("Lookup miss", "antecedent", antecedent, "consequent", consequent)
		fmt.Fprintln(cmd.OutOrStdout(), cli.RenderNoRule())
		return nil
	case err != nil:
		return analysisError(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderLookup(antecedent, consequent, m))
	return nil
}

// analysisError turns caller mistakes into messages for the terminal.
func analysisError(err error) error {
	if errors.Is(err, basket.ErrPrecondition) || errors.Is(err, model.ErrUnknownGranularity) {
		return common.NewUserError("Invalid analysis settings", err)
	}
	return err
}
