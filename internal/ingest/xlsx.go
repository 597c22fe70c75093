package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// headerSearchRows bounds how far down a sheet the header may sit.
const headerSearchRows = 10

// ReadXLSX parses the first worksheet that carries the export's header row.
func ReadXLSX(ctx context.Context, source string, r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open workbook %s: %w", source, err)
	}
	defer func() { _ = f.Close() }()

	return readWorkbook(ctx, source, f)
}

// ReadXLSXFile opens path and parses it like ReadXLSX.
func ReadXLSXFile(ctx context.Context, path string) (Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return readWorkbook(ctx, path, f)
}

func readWorkbook(ctx context.Context, source string, f *excelize.File) (Result, error) {
	var firstErr error
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			slog.Warn("Failed to read sheet", "source", source, "sheet", name, "error", err)
			continue
		}

		headerIdx, cols, err := findHeader(rows, headerSearchRows)
		if err != nil {
			if firstErr == nil || errors.Is(firstErr, ErrNoHeader) {
				firstErr = err
			}
			continue
		}

		slog.Debug("Found sales data", "source", source, "sheet", name, "rows", len(rows)-headerIdx-1)
		return collect(ctx, source, cols, rows[headerIdx+1:], headerIdx+2)
	}

	if firstErr == nil {
		firstErr = ErrNoHeader
	}
	return Result{}, fmt.Errorf("%s: %w", source, firstErr)
}
