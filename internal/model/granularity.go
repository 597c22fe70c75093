package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownGranularity is returned when a grouping field is not recognised.
var ErrUnknownGranularity = errors.New("unknown granularity")

// Granularity selects which product identifier is treated as the item.
type Granularity string

// Supported granularities. The values match the export's column names.
const (
	GranularityFamily   Granularity = "ProductFamily_ID"
	GranularityCategory Granularity = "ProductCategory_ID"
)

// Granularities lists every supported grouping field.
func Granularities() []Granularity {
	return []Granularity{GranularityFamily, GranularityCategory}
}

// ParseGranularity accepts either a column name or the short forms
// "family" and "category".
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "productfamily_id", "family", "product_family":
		return GranularityFamily, nil
	case "productcategory_id", "category", "product_category":
		return GranularityCategory, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// Label returns a human readable name.
func (g Granularity) Label() string {
	switch g {
	case GranularityCategory:
		return "Product Category"
	case GranularityFamily:
		return "Product Family"
	default:
		return string(g)
	}
}
