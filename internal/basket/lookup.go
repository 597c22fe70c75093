package basket

import "fmt"

// NoRuleMessage is the user-facing text for a lookup miss.
const NoRuleMessage = "There are no rules found for this specific itemset, please use different antecedents or consequents"

// RuleMetrics is the answer to a point lookup.
type RuleMetrics struct {
	Support    float64
	Confidence float64
	Lift       float64
}

type rulePair struct {
	antecedent string
	consequent string
}

// newRuleTable indexes single-item rules by (antecedent, consequent). When a
// pair repeats, the first (best ranked) rule wins.
func newRuleTable(rules []AssociationRule, metric Metric, threshold float64) RuleTable {
	index := make(map[rulePair]int, len(rules))
	for i, r := range rules {
		if len(r.Antecedent) != 1 || len(r.Consequent) != 1 {
			continue
		}
		key := rulePair{antecedent: r.Antecedent[0], consequent: r.Consequent[0]}
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}
	return RuleTable{rules: rules, metric: metric, threshold: threshold, index: index}
}

// Lookup returns the metrics of the rule {antecedent} -> {consequent}, or
// ErrRuleNotFound when the table holds no such rule.
func (t RuleTable) Lookup(antecedent, consequent string) (RuleMetrics, error) {
	i, ok := t.index[rulePair{antecedent: antecedent, consequent: consequent}]
	if !ok {
		return RuleMetrics{}, fmt.Errorf("%w: {%s} -> {%s}", ErrRuleNotFound, antecedent, consequent)
	}
	return t.rules[i].Metrics(), nil
}

// Rule returns the full rule for the pair, if present.
func (t RuleTable) Rule(antecedent, consequent string) (AssociationRule, bool) {
	i, ok := t.index[rulePair{antecedent: antecedent, consequent: consequent}]
	if !ok {
		return AssociationRule{}, false
	}
	return t.rules[i], true
}
