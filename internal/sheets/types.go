package sheets

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/Veraticus/basket-rules/internal/basket"
)

// metricPrecision is the number of decimals written for rule metrics.
const metricPrecision = 4

// RuleRow represents a single row in the Rules tab.
type RuleRow struct {
	Rank              int
	Antecedent        string
	Consequent        string
	AntecedentSupport float64
	ConsequentSupport float64
	Support           float64
	Confidence        float64
	Lift              float64
	Leverage          float64
	Conviction        float64
}

// ruleHeader is the header of the Rules tab, in RuleRow.values order.
var ruleHeader = []any{
	"Rank", "Antecedent", "Consequent",
	"Antecedent Support", "Consequent Support",
	"Support", "Confidence", "Lift",
	"Leverage", "Conviction",
}

func (r RuleRow) values() []any {
	return []any{
		r.Rank, r.Antecedent, r.Consequent,
		r.AntecedentSupport, r.ConsequentSupport,
		r.Support, r.Confidence, r.Lift,
		r.Leverage, convictionCell(r.Conviction),
	}
}

// convictionCell writes an unbounded conviction as text; the Sheets API only
// takes finite numbers.
func convictionCell(v float64) any {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return v
}

// RuleRows converts a rule table into sheet rows, best rule first.
func RuleRows(table basket.RuleTable) []RuleRow {
	rules := table.Rules()
	rows := make([]RuleRow, 0, len(rules))
	for i, r := range rules {
		rows = append(rows, RuleRow{
			Rank:              i + 1,
			Antecedent:        strings.Join(r.Antecedent, ", "),
			Consequent:        strings.Join(r.Consequent, ", "),
			AntecedentSupport: round(r.AntecedentSupport),
			ConsequentSupport: round(r.ConsequentSupport),
			Support:           round(r.Support),
			Confidence:        round(r.Confidence),
			Lift:              round(r.Lift),
			Leverage:          round(r.Leverage),
			Conviction:        round(r.Conviction),
		})
	}
	return rows
}

func round(v float64) float64 {
	if math.IsInf(v, 0) {
		return v
	}
	return scalar.Round(v, metricPrecision)
}
