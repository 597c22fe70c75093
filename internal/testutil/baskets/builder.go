// Package baskets builds point-of-sale sales records for tests. Each basket is
// one outlet's sales on one day, so a test can describe co-occurrence
// directly:
//
//	records := baskets.NewBuilder("101", 2021, 1).
//		Basket("X", "Y").
//		Basket("X", "Y").
//		Basket("X").
//		Records()
package baskets

import (
	"time"

	"github.com/Veraticus/basket-rules/internal/model"
)

// Builder accumulates baskets for one outlet and quarter.
type Builder struct {
	pos      string
	records  []model.SalesRecord
	year     int
	quarter  int
	day      int
	category func(item string) string
}

// NewBuilder starts a builder whose first basket falls on the first day of
// the quarter.
func NewBuilder(pos string, year, quarter int) *Builder {
	return &Builder{
		pos:      pos,
		year:     year,
		quarter:  quarter,
		category: func(string) string { return "C0" },
	}
}

// WithCategories maps each family to a category. Families missing from the
// map fall into "C0".
func (b *Builder) WithCategories(families map[string]string) *Builder {
	b.category = func(item string) string {
		if c, ok := families[item]; ok {
			return c
		}
		return "C0"
	}
	return b
}

// Basket adds one transaction holding the given product families. The next
// basket falls on the following day.
func (b *Builder) Basket(families ...string) *Builder {
	date := time.Date(b.year, time.Month(3*(b.quarter-1)+1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, b.day)
	for _, f := range families {
		rec := model.SalesRecord{
			Date:              date,
			PointOfSaleID:     b.pos,
			ProductFamilyID:   f,
			ProductCategoryID: b.category(f),
			SellOutUnits:      1,
			Year:              b.year,
			Quarter:           b.quarter,
		}
		rec.Hash = rec.GenerateHash()
		b.records = append(b.records, rec)
	}
	b.day++
	return b
}

// Repeat adds n identical baskets.
func (b *Builder) Repeat(n int, families ...string) *Builder {
	for range n {
		b.Basket(families...)
	}
	return b
}

// Records returns a copy of every record built so far.
func (b *Builder) Records() []model.SalesRecord {
	out := make([]model.SalesRecord, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the number of baskets built.
func (b *Builder) Len() int {
	return b.day
}
