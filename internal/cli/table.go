package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/model"
)

// numeric columns of the rule table, right-aligned.
var ruleNumberColumns = map[int]bool{0: true, 3: true, 4: true, 5: true, 6: true, 7: true, 8: true, 9: true}

var ruleHeaders = []string{
	"#", "Antecedent", "Consequent", "Ant. Support", "Cons. Support",
	"Support", "Confidence", "Lift", "Leverage", "Conviction",
}

func newTable(headers []string, rows [][]string, numeric map[int]bool) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(BorderColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case numeric[col]:
				return NumberCellStyle
			default:
				return TableCellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
}

// RenderRules renders the rule table, best rule first. A positive limit caps
// the number of rows shown.
func RenderRules(rules basket.RuleTable, limit int) string {
	all := rules.Rules()
	if len(all) == 0 {
		return FormatInfo("No rules meet the thresholds. Try a lower minimum support or threshold.")
	}

	shown := all
	if limit > 0 && limit < len(all) {
		shown = all[:limit]
	}

	rows := make([][]string, 0, len(shown))
	for i, r := range shown {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strings.Join(r.Antecedent, ", "),
			strings.Join(r.Consequent, ", "),
			formatMetric(r.AntecedentSupport),
			formatMetric(r.ConsequentSupport),
			formatMetric(r.Support),
			formatMetric(r.Confidence),
			LiftStyle(r.Lift).Render(formatMetric(r.Lift)),
			formatMetric(r.Leverage),
			formatMetric(r.Conviction),
		})
	}

	t := newTable(ruleHeaders, rows, ruleNumberColumns)

	footer := fmt.Sprintf("%d rules ranked by %s (minimum %s)", len(all), rules.Metric(), formatMetric(rules.Threshold()))
	if len(shown) < len(all) {
		footer = fmt.Sprintf("showing %d of %s", len(shown), footer)
	}
	return t.String() + "\n" + SubtleStyle.Render(footer)
}

// RenderLookup renders the metrics of a single rule.
func RenderLookup(antecedent, consequent string, m basket.RuleMetrics) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		fmt.Sprintf("With Product ID %s customer also purchase Product ID %s", antecedent, consequent),
		"",
		fmt.Sprintf("%s %s", BoldStyle.Render("Support:   "), formatMetric(m.Support)),
		fmt.Sprintf("%s %s", BoldStyle.Render("Confidence:"), formatMetric(m.Confidence)),
		fmt.Sprintf("%s %s", BoldStyle.Render("Lift:      "), LiftStyle(m.Lift).Render(formatMetric(m.Lift))),
	)
	return RenderBox(fmt.Sprintf("%s {%s} -> {%s}", ChartIcon, antecedent, consequent), content)
}

// RenderNoRule renders the lookup miss message.
func RenderNoRule() string {
	return FormatWarning(basket.NoRuleMessage)
}

// RenderSelection lists the outlets, years and quarters available for analysis.
func RenderSelection(sel model.Selection) string {
	if len(sel.PointsOfSale) == 0 {
		return FormatInfo("No sales records yet. Use 'basket import' to load an export.")
	}

	years := make([]string, len(sel.Years))
	for i, y := range sel.Years {
		years[i] = strconv.Itoa(y)
	}
	quarters := make([]string, len(sel.Quarters))
	for i, q := range sel.Quarters {
		quarters[i] = "Q" + strconv.Itoa(q)
	}

	t := newTable([]string{"Field", "Values"}, [][]string{
		{"Point of Sale", strings.Join(sel.PointsOfSale, ", ")},
		{"Year", strings.Join(years, ", ")},
		{"Quarter", strings.Join(quarters, ", ")},
	}, nil)
	return t.String()
}

// RenderImports lists past imports, newest first.
func RenderImports(batches []model.ImportBatch) string {
	if len(batches) == 0 {
		return FormatInfo("No imports yet.")
	}

	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, []string{
			b.ImportedAt.Local().Format("2006-01-02 15:04"),
			b.Source,
			strconv.Itoa(b.Total),
			strconv.Itoa(b.Inserted),
		})
	}
	return newTable([]string{"Imported", "File", "Rows", "New"}, rows, map[int]bool{2: true, 3: true}).String()
}

func formatMetric(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
