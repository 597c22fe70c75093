package basket

import "fmt"

// scenarioA is four transactions: X and Y together three times, X alone once.
func scenarioA() Matrix {
	return Build([]TransactionRecord{
		{Key: "d1", Item: "X"}, {Key: "d1", Item: "Y"},
		{Key: "d2", Item: "X"}, {Key: "d2", Item: "Y"},
		{Key: "d3", Item: "X"}, {Key: "d3", Item: "Y"},
		{Key: "d4", Item: "X"},
	})
}

// groceryMatrix is a small, irregular basket set with several items at
// different frequencies.
func groceryMatrix() Matrix {
	baskets := [][]string{
		{"bread", "milk"},
		{"bread", "diapers", "beer", "eggs"},
		{"milk", "diapers", "beer", "cola"},
		{"bread", "milk", "diapers", "beer"},
		{"bread", "milk", "diapers", "cola"},
		{"milk", "eggs"},
		{"bread", "beer"},
		{"cola"},
	}
	var records []TransactionRecord
	for i, items := range baskets {
		for _, it := range items {
			records = append(records, TransactionRecord{Key: fmt.Sprintf("t%02d", i), Item: it})
		}
	}
	return Build(records)
}

func supportOf(sets []Itemset, items ...string) (float64, bool) {
	for _, s := range sets {
		if len(s.Items) != len(items) {
			continue
		}
		match := true
		for i := range items {
			if s.Items[i] != items[i] {
				match = false
				break
			}
		}
		if match {
			return s.Support, true
		}
	}
	return 0, false
}
