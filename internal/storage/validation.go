// Package storage provides the data persistence layer for imported sales records.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Veraticus/basket-rules/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrEmptySlice    = errors.New("slice cannot be empty")
	ErrInvalidRecord = errors.New("invalid sales record")
	ErrInvalidFilter = errors.New("invalid filter")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRecords validates a slice of sales records.
func validateRecords(records []model.SalesRecord) error {
	if records == nil {
		return fmt.Errorf("%w: records", ErrNilParameter)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: records", ErrEmptySlice)
	}

	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			return fmt.Errorf("record at index %d: %w", i, err)
		}
	}
	return nil
}

// validateRecord validates a single sales record.
func validateRecord(rec *model.SalesRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if rec.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	if strings.TrimSpace(rec.PointOfSaleID) == "" {
		return fmt.Errorf("%w: missing point of sale", ErrInvalidRecord)
	}
	if strings.TrimSpace(rec.ProductFamilyID) == "" && strings.TrimSpace(rec.ProductCategoryID) == "" {
		return fmt.Errorf("%w: missing product identifiers", ErrInvalidRecord)
	}
	if rec.Quarter < 1 || rec.Quarter > 4 {
		return fmt.Errorf("%w: quarter %d outside 1..4", ErrInvalidRecord, rec.Quarter)
	}
	if rec.Year <= 0 {
		return fmt.Errorf("%w: missing year", ErrInvalidRecord)
	}
	if math.IsNaN(rec.SellOutUnits) || math.IsInf(rec.SellOutUnits, 0) {
		return fmt.Errorf("%w: sell-out units %v not finite", ErrInvalidRecord, rec.SellOutUnits)
	}
	return nil
}

// validateFilter validates an outlet/year/quarter filter.
func validateFilter(f model.Filter) error {
	if err := validateString(f.PointOfSaleID, "point of sale"); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	if f.Quarter < 1 || f.Quarter > 4 {
		return fmt.Errorf("%w: quarter %d outside 1..4", ErrInvalidFilter, f.Quarter)
	}
	if f.Year <= 0 {
		return fmt.Errorf("%w: year %d", ErrInvalidFilter, f.Year)
	}
	return nil
}
