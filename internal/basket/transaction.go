package basket

import (
	"sort"

	"github.com/Veraticus/basket-rules/internal/model"
)

// TransactionRecord says that Item occurred in the transaction identified by Key.
type TransactionRecord struct {
	Key  string
	Item string
}

// Matrix is a binary transaction matrix: one row per distinct key, one column
// per distinct item. The zero value is an empty matrix.
type Matrix struct {
	keys  []string
	items []string
	rows  []map[string]struct{}
}

// Build aggregates records by (key, item) presence. Duplicate pairs collapse
// into a single cell.
func Build(records []TransactionRecord) Matrix {
	if len(records) == 0 {
		return Matrix{}
	}

	byKey := make(map[string]map[string]struct{})
	itemSet := make(map[string]struct{})
	for _, rec := range records {
		row, ok := byKey[rec.Key]
		if !ok {
			row = make(map[string]struct{})
			byKey[rec.Key] = row
		}
		row[rec.Item] = struct{}{}
		itemSet[rec.Item] = struct{}{}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]string, 0, len(itemSet))
	for it := range itemSet {
		items = append(items, it)
	}
	sort.Strings(items)

	rows := make([]map[string]struct{}, len(keys))
	for i, k := range keys {
		rows[i] = byKey[k]
	}

	return Matrix{keys: keys, items: items, rows: rows}
}

// Project turns filtered sales records into transaction records at the given
// granularity. Units are summed per (key, item) first; a pair whose net
// sell-out is not positive, such as a sale cancelled by a return on the same
// day, is not a purchase and is left out. Records come out in first-seen order.
func Project(sales []model.SalesRecord, g model.Granularity) []TransactionRecord {
	net := make(map[TransactionRecord]float64, len(sales))
	order := make([]TransactionRecord, 0, len(sales))
	for _, s := range sales {
		item := s.Item(g)
		if item == "" {
			continue
		}
		rec := TransactionRecord{Key: s.TransactionKey(), Item: item}
		if _, seen := net[rec]; !seen {
			order = append(order, rec)
		}
		net[rec] += s.SellOutUnits
	}

	out := order[:0]
	for _, rec := range order {
		if net[rec] > 0 {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns the number of transactions (rows).
func (m Matrix) Len() int {
	return len(m.keys)
}

// Empty reports whether the matrix has no rows.
func (m Matrix) Empty() bool {
	return len(m.keys) == 0
}

// Keys returns the transaction keys in ascending order.
func (m Matrix) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Items returns the item identifiers in ascending order.
func (m Matrix) Items() []string {
	return append([]string(nil), m.items...)
}

// Contains reports whether item occurred in the transaction key.
func (m Matrix) Contains(key, item string) bool {
	i := sort.SearchStrings(m.keys, key)
	if i == len(m.keys) || m.keys[i] != key {
		return false
	}
	_, ok := m.rows[i][item]
	return ok
}

// occurrences maps each item to the ascending row indexes containing it.
func (m Matrix) occurrences() map[string][]int {
	occ := make(map[string][]int, len(m.items))
	for i, row := range m.rows {
		for item := range row {
			occ[item] = append(occ[item], i)
		}
	}
	return occ
}
