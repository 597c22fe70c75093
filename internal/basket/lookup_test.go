package basket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleTable_Lookup(t *testing.T) {
	sets, err := Mine(scenarioA(), 0.5)
	require.NoError(t, err)
	table, err := Generate(sets, MetricLift, 0)
	require.NoError(t, err)

	tests := []struct {
		name       string
		antecedent string
		consequent string
		want       RuleMetrics
		wantErr    bool
	}{
		{
			name:       "forward rule",
			antecedent: "X",
			consequent: "Y",
			want:       RuleMetrics{Support: 0.75, Confidence: 0.75, Lift: 1},
		},
		{
			name:       "reverse rule",
			antecedent: "Y",
			consequent: "X",
			want:       RuleMetrics{Support: 0.75, Confidence: 1, Lift: 1},
		},
		{
			name:       "unknown item",
			antecedent: "X",
			consequent: "Q",
			wantErr:    true,
		},
		{
			name:       "self pair",
			antecedent: "X",
			consequent: "X",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Lookup(tt.antecedent, tt.consequent)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRuleNotFound)
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Support, got.Support, tolerance)
			assert.InDelta(t, tt.want.Confidence, got.Confidence, tolerance)
			assert.InDelta(t, tt.want.Lift, got.Lift, tolerance)
		})
	}
}

func TestLookup_ScenarioB_EmptyMatrix(t *testing.T) {
	sets, err := Mine(Build(nil), 0.5)
	require.NoError(t, err)
	assert.Empty(t, sets)

	table, err := Generate(sets, MetricConfidence, 0.5)
	require.NoError(t, err)
	assert.Zero(t, table.Len())

	_, err = table.Lookup("anything", "else")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestLookup_ScenarioC_NeverCoOccurring(t *testing.T) {
	m := Build([]TransactionRecord{
		{Key: "1", Item: "A"},
		{Key: "2", Item: "A"},
		{Key: "3", Item: "B"},
		{Key: "4", Item: "B"},
	})

	sets, err := Mine(m, 0.5)
	require.NoError(t, err)
	_, okA := supportOf(sets, "A")
	_, okB := supportOf(sets, "B")
	require.True(t, okA && okB, "both items are frequent on their own")

	table, err := Generate(sets, MetricLift, 0)
	require.NoError(t, err)

	_, err = table.Lookup("A", "B")
	assert.ErrorIs(t, err, ErrRuleNotFound)
	_, err = table.Lookup("B", "A")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestRuleTable_ZeroValue(t *testing.T) {
	var table RuleTable
	_, err := table.Lookup("A", "B")
	assert.ErrorIs(t, err, ErrRuleNotFound)
	_, ok := table.Rule("A", "B")
	assert.False(t, ok)
}

func TestRuleTable_FirstMatchWins(t *testing.T) {
	rules := []AssociationRule{
		{Antecedent: []string{"A"}, Consequent: []string{"B"}, Support: 0.5, Confidence: 0.9, Lift: 1.8},
		{Antecedent: []string{"A"}, Consequent: []string{"B"}, Support: 0.1, Confidence: 0.2, Lift: 0.4},
	}
	table := newRuleTable(rules, MetricConfidence, 0)

	got, err := table.Lookup("A", "B")
	require.NoError(t, err)
	assert.Equal(t, RuleMetrics{Support: 0.5, Confidence: 0.9, Lift: 1.8}, got)

	rule, ok := table.Rule("A", "B")
	require.True(t, ok)
	assert.Equal(t, 0.5, rule.Support)
}

func TestRuleTable_RulesIsACopy(t *testing.T) {
	sets, err := Mine(scenarioA(), 0.5)
	require.NoError(t, err)
	table, err := Generate(sets, MetricLift, 0)
	require.NoError(t, err)

	rules := table.Rules()
	rules[0].Lift = 42

	got, err := table.Lookup(rules[0].Antecedent[0], rules[0].Consequent[0])
	require.NoError(t, err)
	assert.NotEqual(t, 42.0, got.Lift)
}
