package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/basket-rules/internal/cli"
	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/config"
	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/pipeline"
	"github.com/Veraticus/basket-rules/internal/storage"
)

// databasePath returns the configured database path with ~ and $VARS
// expanded, defaulting to basket.db in the data directory.
func databasePath() string {
	if dbPath := viper.GetString("database.path"); dbPath != "" {
		return config.ExpandPath(dbPath)
	}
	return filepath.Join(config.DataDir(), "basket.db")
}

// initStorage opens the database and applies pending migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(databasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newPipeline builds a pipeline over the store using the analysis settings.
func newPipeline(source pipeline.RecordSource, a config.Analysis, reg prometheus.Registerer) (*pipeline.Pipeline, error) {
	return pipeline.New(source, pipeline.Options{
		Logger:     slog.Default(),
		Registerer: reg,
		CacheSize:  a.CacheSize,
		Workers:    a.Workers,
	})
}

// addAnalysisFlags registers the mining knobs shared by rules, lookup, export
// and serve.
func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("granularity", "g", "", "item level: family or category (default from config)")
	cmd.Flags().StringP("metric", "m", "", "ranking metric: confidence or lift (default from config)")
	cmd.Flags().Float64P("threshold", "t", 0, "minimum value of the ranking metric")
	cmd.Flags().Float64P("min-support", "s", 0, "minimum itemset support in [0, 1]")
	cmd.Flags().Int("workers", 0, "goroutines counting pair support")
}

// bindAnalysisFlags points the analysis.* keys at this command's flags. It
// runs in PreRunE so only the executing command's flags are bound.
func bindAnalysisFlags(cmd *cobra.Command, _ []string) error {
	for key, flag := range map[string]string{
		"analysis.granularity": "granularity",
		"analysis.metric":      "metric",
		"analysis.threshold":   "threshold",
		"analysis.min_support": "min-support",
		"analysis.workers":     "workers",
	} {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// loadAnalysis reads the analysis settings, reporting bad values to the user.
func loadAnalysis() (config.Analysis, error) {
	a, err := config.LoadAnalysis()
	if err != nil {
		return config.Analysis{}, common.NewUserError("Invalid analysis settings", err)
	}
	return a, nil
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("pos", "", "point-of-sale ID (prompted when omitted)")
	cmd.Flags().Int("year", 0, "year (prompted when omitted)")
	cmd.Flags().Int("quarter", 0, "quarter 1-4 (prompted when omitted)")
}

// resolveFilter reads --pos, --year and --quarter, asking for any that are
// missing from the values on record.
func resolveFilter(cmd *cobra.Command, picker *cli.Picker, sel model.Selection) (model.Filter, error) {
	pos, _ := cmd.Flags().GetString("pos")
	year, _ := cmd.Flags().GetInt("year")
	quarter, _ := cmd.Flags().GetInt("quarter")

	if quarter != 0 && (quarter < 1 || quarter > 4) {
		return model.Filter{}, common.NewUserError("Quarter must be between 1 and 4", nil)
	}
	if pos != "" && year != 0 && quarter != 0 {
		return model.Filter{PointOfSaleID: pos, Year: year, Quarter: quarter}, nil
	}

	if len(sel.PointsOfSale) == 0 {
		return model.Filter{}, common.NewUserErrorWithHint("No sales records yet",
			"Run 'basket import FILE...' to load a sales export", common.ErrNoRecords)
	}

	ctx := cmd.Context()
	var err error
	if pos == "" {
		if pos, err = picker.Choose(ctx, "Point of Sale", sel.PointsOfSale); err != nil {
			return model.Filter{}, err
		}
	}
	if year == 0 {
		if year, err = chooseInt(ctx, picker, "Year", sel.Years); err != nil {
			return model.Filter{}, err
		}
	}
	if quarter == 0 {
		if quarter, err = chooseInt(ctx, picker, "Quarter", sel.Quarters); err != nil {
			return model.Filter{}, err
		}
	}

	return model.Filter{PointOfSaleID: pos, Year: year, Quarter: quarter}, nil
}

func chooseInt(ctx context.Context, picker *cli.Picker, label string, values []int) (int, error) {
	options := make([]string, len(values))
	for i, v := range values {
		options[i] = strconv.Itoa(v)
	}
	choice, err := picker.Choose(ctx, label, options)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(choice)
}

// chooseItem returns item when set, else asks the user to pick one of items.
func chooseItem(ctx context.Context, picker *cli.Picker, label, item string, items []string) (string, error) {
	if item != "" {
		return item, nil
	}
	if len(items) == 0 {
		return "", common.NewUserErrorWithHint("No items found for this outlet and quarter",
			"Run 'basket options' to see the periods on record", common.ErrNoRecords)
	}
	return picker.Choose(ctx, label, items)
}

// without returns items minus the excluded one.
func without(items []string, excluded string) []string {
	return slices.DeleteFunc(slices.Clone(items), func(s string) bool { return s == excluded })
}
