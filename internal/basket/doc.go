// Package basket mines pairwise association rules from point-of-sale baskets.
//
// The pipeline has four pure stages:
//
//	records --Build--> Matrix --Mine--> []Itemset --Generate--> RuleTable --Lookup--> RuleMetrics
//
// Every stage allocates its own output and never mutates its input, so the
// functions are safe to call concurrently for different configurations.
// Itemsets are bounded to two items.
package basket

import "errors"

var (
	// ErrPrecondition marks a caller contract violation such as a support
	// threshold outside [0, 1].
	ErrPrecondition = errors.New("precondition violated")
	// ErrRuleNotFound is returned by lookups when no rule matches the pair.
	ErrRuleNotFound = errors.New("rule not found")
)
