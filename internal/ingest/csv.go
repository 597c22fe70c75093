package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// ReadCSV parses a comma separated export. The first non-empty row must be
// the header.
func ReadCSV(ctx context.Context, source string, r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read CSV %s: %w", source, err)
	}

	headerIdx, cols, err := findHeader(rows, 1)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", source, err)
	}

	return collect(ctx, source, cols, rows[headerIdx+1:], headerIdx+2)
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(ctx, path, f)
}
