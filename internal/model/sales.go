package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// SalesRecord is one line of a point-of-sale sell-out export.
type SalesRecord struct {
	Date              time.Time
	PointOfSaleID     string
	ProductFamilyID   string
	ProductCategoryID string
	Hash              string
	SellOutUnits      float64
	Year              int
	Quarter           int
}

// GenerateHash creates a unique hash for duplicate detection.
func (r *SalesRecord) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s:%.4f",
		r.Date.Format("2006-01-02"),
		r.PointOfSaleID,
		r.ProductFamilyID,
		r.ProductCategoryID,
		r.SellOutUnits)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Item returns the identifier the record contributes at the given granularity.
func (r SalesRecord) Item(g Granularity) string {
	switch g {
	case GranularityCategory:
		return r.ProductCategoryID
	default:
		return r.ProductFamilyID
	}
}

// TransactionKey is the basket a record belongs to: all sales of one outlet on
// one calendar day.
func (r SalesRecord) TransactionKey() string {
	return r.Date.Format("2006-01-02")
}

// QuarterOf returns the calendar quarter (1-4) of t.
func QuarterOf(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// Filter scopes sales records to one outlet, year and quarter.
type Filter struct {
	PointOfSaleID string
	Year          int
	Quarter       int
}

// Matches reports whether the record falls inside the filter.
func (f Filter) Matches(r SalesRecord) bool {
	return r.PointOfSaleID == f.PointOfSaleID && r.Year == f.Year && r.Quarter == f.Quarter
}

func (f Filter) String() string {
	return fmt.Sprintf("pos=%s year=%d Q%d", f.PointOfSaleID, f.Year, f.Quarter)
}

// Selection lists the filter values present in the store.
type Selection struct {
	PointsOfSale []string
	Years        []int
	Quarters     []int
}

// ImportBatch records one imported file.
type ImportBatch struct {
	ImportedAt time.Time
	Source     string
	ID         int64
	Total      int
	Inserted   int
}
