package basket

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// Metric is the measure rules are filtered and ranked by.
type Metric string

// Supported metrics.
const (
	MetricConfidence Metric = "confidence"
	MetricLift       Metric = "lift"
)

// ParseMetric converts a user supplied metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case MetricConfidence:
		return MetricConfidence, nil
	case MetricLift:
		return MetricLift, nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", ErrPrecondition, s)
	}
}

// ValidateThreshold checks a minimum threshold for the metric. Confidence is a
// probability and must lie in [0, 1]; lift is unbounded above but never negative.
func ValidateThreshold(metric Metric, threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return fmt.Errorf("%w: threshold %v is not a number", ErrPrecondition, threshold)
	}
	switch metric {
	case MetricConfidence:
		if threshold < 0 || threshold > 1 {
			return fmt.Errorf("%w: confidence threshold %v outside [0, 1]", ErrPrecondition, threshold)
		}
	case MetricLift:
		if threshold < 0 {
			return fmt.Errorf("%w: lift threshold %v is negative", ErrPrecondition, threshold)
		}
	default:
		return fmt.Errorf("%w: unknown metric %q", ErrPrecondition, metric)
	}
	return nil
}

// AssociationRule is a directed rule antecedent -> consequent.
//
// Leverage and Conviction are reported alongside the ranking metrics but never
// filter or order rules. Conviction is +Inf when Confidence is 1.
type AssociationRule struct {
	Antecedent        []string
	Consequent        []string
	AntecedentSupport float64
	ConsequentSupport float64
	Support           float64
	Confidence        float64
	Lift              float64
	Leverage          float64
	Conviction        float64
}

// Value returns the rule's score under metric.
func (r AssociationRule) Value(metric Metric) float64 {
	if metric == MetricLift {
		return r.Lift
	}
	return r.Confidence
}

// Metrics returns the lookup view of the rule.
func (r AssociationRule) Metrics() RuleMetrics {
	return RuleMetrics{Support: r.Support, Confidence: r.Confidence, Lift: r.Lift}
}

func (r AssociationRule) String() string {
	return fmt.Sprintf("{%s} -> {%s}", strings.Join(r.Antecedent, ","), strings.Join(r.Consequent, ","))
}

// RuleTable is the ranked output of Generate. It is immutable; the zero value
// is an empty table.
type RuleTable struct {
	index     map[rulePair]int
	metric    Metric
	rules     []AssociationRule
	threshold float64
}

// Rules returns a copy of the rules, best first.
func (t RuleTable) Rules() []AssociationRule {
	return append([]AssociationRule(nil), t.rules...)
}

// Len returns the number of rules.
func (t RuleTable) Len() int {
	return len(t.rules)
}

// Metric returns the metric the table is ranked by.
func (t RuleTable) Metric() Metric {
	return t.metric
}

// Threshold returns the minimum metric value of the table.
func (t RuleTable) Threshold() float64 {
	return t.threshold
}

// Generate expands every two-item itemset {A, B} into A -> B and B -> A,
// keeps the rules whose metric reaches minThreshold and ranks them by that
// metric, best first. Single-item supports are taken from the same input;
// a rule whose supports are missing is dropped.
func Generate(itemsets []Itemset, metric Metric, minThreshold float64) (RuleTable, error) {
	if err := ValidateThreshold(metric, minThreshold); err != nil {
		return RuleTable{}, err
	}

	singles := make(map[string]float64)
	for _, s := range itemsets {
		if s.Len() == 1 {
			singles[s.Items[0]] = s.Support
		}
	}

	var rules []AssociationRule
	for _, s := range itemsets {
		if s.Len() != 2 {
			continue
		}
		for _, dir := range [2][2]string{{s.Items[0], s.Items[1]}, {s.Items[1], s.Items[0]}} {
			rule, ok := deriveRule(dir[0], dir[1], s.Support, singles)
			if !ok {
				slog.Debug("Dropping rule without single-item support",
					"antecedent", dir[0],
					"consequent", dir[1])
				continue
			}
			if rule.Value(metric) >= minThreshold {
				rules = append(rules, rule)
			}
		}
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Value(metric) > rules[j].Value(metric)
	})

	return newRuleTable(rules, metric, minThreshold), nil
}

func deriveRule(antecedent, consequent string, support float64, singles map[string]float64) (AssociationRule, bool) {
	antSupport, ok := singles[antecedent]
	if !ok || antSupport <= 0 {
		return AssociationRule{}, false
	}
	conSupport, ok := singles[consequent]
	if !ok || conSupport <= 0 {
		return AssociationRule{}, false
	}

	confidence := support / antSupport
	return AssociationRule{
		Antecedent:        []string{antecedent},
		Consequent:        []string{consequent},
		AntecedentSupport: antSupport,
		ConsequentSupport: conSupport,
		Support:           support,
		Confidence:        confidence,
		Lift:              confidence / conSupport,
		Leverage:          support - antSupport*conSupport,
		Conviction:        conviction(conSupport, confidence),
	}, true
}

// conviction is (1 - consequent support) / (1 - confidence), +Inf for a rule
// that always holds.
func conviction(conSupport, confidence float64) float64 {
	if confidence >= 1 {
		return math.Inf(1)
	}
	return (1 - conSupport) / (1 - confidence)
}
