package sheets

import (
	"context"
	"strings"

	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/basket-rules/internal/basket"
)

// RecommendationRow represents a single row in the Recommendations tab: the
// strongest consequent for one antecedent.
type RecommendationRow struct {
	Antecedent string
	Consequent string
	Confidence float64
	Lift       float64
	Rank       int
}

// Recommendations picks, for every antecedent in the table, its highest-ranked
// rule. Rows follow the rank of that rule.
func Recommendations(table basket.RuleTable) []RecommendationRow {
	seen := make(map[string]struct{})
	var rows []RecommendationRow
	for i, r := range table.Rules() {
		a := strings.Join(r.Antecedent, ", ")
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		rows = append(rows, RecommendationRow{
			Antecedent: a,
			Consequent: strings.Join(r.Consequent, ", "),
			Confidence: round(r.Confidence),
			Lift:       round(r.Lift),
			Rank:       i + 1,
		})
	}
	return rows
}

// writeRecommendationsTab writes the per-antecedent recommendation table.
func (w *Writer) writeRecommendationsTab(ctx context.Context, spreadsheetID string, rows []RecommendationRow) error {
	values := [][]any{
		{"If a basket has", "Also offer", "Confidence", "Lift", "Rule Rank"},
	}

	for _, row := range rows {
		values = append(values, []any{
			row.Antecedent,
			row.Consequent,
			row.Confidence,
			row.Lift,
			row.Rank,
		})
	}

	valueRange := &sheets.ValueRange{
		Values: values,
	}

	rangeStr := recommendationsTab + "!A1"
	_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()

	return err
}
