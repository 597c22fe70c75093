// Package ingest reads point-of-sale sell-out exports (CSV or XLSX) into
// sales records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/basket-rules/internal/model"
)

// Parsing errors.
var (
	ErrMissingColumn     = errors.New("missing required column")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoHeader          = errors.New("no header row found")
)

// Column names of the export.
const (
	ColumnDate         = "date"
	ColumnPointOfSale  = "point-of-sale_id"
	ColumnFamily       = "productfamily_id"
	ColumnCategory     = "productcategory_id"
	ColumnSellOutUnits = "sell-out units"
	ColumnYear         = "year"
	ColumnQuarter      = "quarter"
)

var requiredColumns = []string{ColumnDate, ColumnPointOfSale, ColumnFamily, ColumnCategory}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
}

// Result is the outcome of parsing one export.
type Result struct {
	Records []model.SalesRecord
	Skipped int
}

// ReadFile parses a file, picking the reader from its extension.
func ReadFile(ctx context.Context, path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return ReadCSVFile(ctx, path)
	case ".xlsx", ".xlsm":
		return ReadXLSXFile(ctx, path)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// columnMap maps lower-cased header names to their position.
type columnMap map[string]int

func newColumnMap(header []string) (columnMap, error) {
	cols := make(columnMap, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key == "" {
			// unnamed index column
			continue
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := cols[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return cols, nil
}

func (c columnMap) value(row []string, col string) string {
	i, ok := c[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseRow converts one data row. Year and quarter fall back to the date when
// the export lacks them.
func (c columnMap) parseRow(row []string) (model.SalesRecord, error) {
	date, err := parseDate(c.value(row, ColumnDate))
	if err != nil {
		return model.SalesRecord{}, err
	}

	rec := model.SalesRecord{
		Date:              date,
		PointOfSaleID:     normalizeID(c.value(row, ColumnPointOfSale)),
		ProductFamilyID:   normalizeID(c.value(row, ColumnFamily)),
		ProductCategoryID: normalizeID(c.value(row, ColumnCategory)),
		SellOutUnits:      1,
		Year:              date.Year(),
		Quarter:           model.QuarterOf(date),
	}
	if rec.PointOfSaleID == "" {
		return model.SalesRecord{}, fmt.Errorf("empty point of sale")
	}
	if rec.ProductFamilyID == "" && rec.ProductCategoryID == "" {
		return model.SalesRecord{}, fmt.Errorf("empty product identifiers")
	}

	if v := c.value(row, ColumnSellOutUnits); v != "" {
		units, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.SalesRecord{}, fmt.Errorf("invalid sell-out units %q: %w", v, err)
		}
		if math.IsNaN(units) || math.IsInf(units, 0) {
			return model.SalesRecord{}, fmt.Errorf("invalid sell-out units %q: not a finite number", v)
		}
		rec.SellOutUnits = units
	}
	if v := c.value(row, ColumnYear); v != "" {
		year, err := parseInt(v)
		if err != nil {
			return model.SalesRecord{}, fmt.Errorf("invalid year %q: %w", v, err)
		}
		rec.Year = year
	}
	if v := c.value(row, ColumnQuarter); v != "" {
		quarter, err := parseQuarter(v)
		if err != nil {
			return model.SalesRecord{}, err
		}
		rec.Quarter = quarter
	}

	rec.Hash = rec.GenerateHash()
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// parseInt accepts "2022" as well as spreadsheet floats like "2022.0".
func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func parseQuarter(s string) (int, error) {
	q, err := parseInt(strings.TrimPrefix(strings.ToUpper(s), "Q"))
	if err != nil || q < 1 || q > 4 {
		return 0, fmt.Errorf("invalid quarter %q", s)
	}
	return q, nil
}

// normalizeID strips the ".0" spreadsheets append to integer ids.
func normalizeID(s string) string {
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}

// collect parses data rows, skipping malformed ones. firstLine is the 1-based
// position of rows[0] in the source, used in log messages.
func collect(ctx context.Context, source string, cols columnMap, rows [][]string, firstLine int) (Result, error) {
	var res Result
	for i, row := range rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		if isBlank(row) {
			continue
		}

		rec, err := cols.parseRow(row)
		if err != nil {
			res.Skipped++
			slog.Warn("Skipping malformed row",
				"source", source,
				"line", firstLine+i,
				"error", err)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// findHeader returns the index of the first row that carries every required
// column, looking at most at limit rows. Spreadsheet exports often start with
// a title block above the header.
func findHeader(rows [][]string, limit int) (int, columnMap, error) {
	var lastErr error = ErrNoHeader
	for i := 0; i < len(rows) && i < limit; i++ {
		cols, err := newColumnMap(rows[i])
		if err == nil {
			return i, cols, nil
		}
		if lastErr == ErrNoHeader && !isBlank(rows[i]) {
			lastErr = err
		}
	}
	return 0, nil, lastErr
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
