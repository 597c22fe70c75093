package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/basket-rules/internal/model"
)

// SaveSalesRecords stores records, skipping any already present. It returns
// how many rows were new.
func (s *SQLiteStorage) SaveSalesRecords(ctx context.Context, records []model.SalesRecord) (int, error) {
	// Validate inputs
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateRecords(records); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted, err := s.saveSalesRecordsTx(ctx, tx, records)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sales records: %w", err)
	}
	return inserted, nil
}

func (s *SQLiteStorage) saveSalesRecordsTx(ctx context.Context, tx *sql.Tx, records []model.SalesRecord) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO sales_records (
			hash, date, pos_id, product_family_id, product_category_id,
			sell_out_units, year, quarter
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, rec := range records {
		// Generate hash if not already set
		if rec.Hash == "" {
			rec.Hash = rec.GenerateHash()
		}

		res, err := stmt.ExecContext(ctx,
			rec.Hash,
			rec.Date.UTC(),
			rec.PointOfSaleID,
			rec.ProductFamilyID,
			rec.ProductCategoryID,
			rec.SellOutUnits,
			rec.Year,
			rec.Quarter,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert sales record %s: %w", rec.Hash[:12], err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	slog.Debug("Saved sales records", "total", len(records), "inserted", inserted)
	return inserted, nil
}

// SalesRecords returns every record for one outlet, year and quarter, ordered by date.
func (s *SQLiteStorage) SalesRecords(ctx context.Context, filter model.Filter) ([]model.SalesRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, date, pos_id, product_family_id, product_category_id,
		       sell_out_units, year, quarter
		FROM sales_records
		WHERE pos_id = ? AND year = ? AND quarter = ?
		ORDER BY date, id
	`, filter.PointOfSaleID, filter.Year, filter.Quarter)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.SalesRecord
	for rows.Next() {
		var rec model.SalesRecord
		if err := rows.Scan(
			&rec.Hash,
			&rec.Date,
			&rec.PointOfSaleID,
			&rec.ProductFamilyID,
			&rec.ProductCategoryID,
			&rec.SellOutUnits,
			&rec.Year,
			&rec.Quarter,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sales record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales records: %w", err)
	}

	return records, nil
}

// Selection lists the distinct outlets, years and quarters in the store.
func (s *SQLiteStorage) Selection(ctx context.Context) (model.Selection, error) {
	if err := validateContext(ctx); err != nil {
		return model.Selection{}, err
	}

	var sel model.Selection
	if err := s.distinct(ctx, "pos_id", func(rows *sql.Rows) error {
		var v string
		if err := rows.Scan(&v); err != nil {
			return err
		}
		sel.PointsOfSale = append(sel.PointsOfSale, v)
		return nil
	}); err != nil {
		return model.Selection{}, err
	}

	for _, col := range []struct {
		name string
		dst  *[]int
	}{
		{name: "year", dst: &sel.Years},
		{name: "quarter", dst: &sel.Quarters},
	} {
		if err := s.distinct(ctx, col.name, func(rows *sql.Rows) error {
			var v int
			if err := rows.Scan(&v); err != nil {
				return err
			}
			*col.dst = append(*col.dst, v)
			return nil
		}); err != nil {
			return model.Selection{}, err
		}
	}

	return sel, nil
}

func (s *SQLiteStorage) distinct(ctx context.Context, column string, scan func(*sql.Rows) error) error {
	// column is never user input.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT DISTINCT %s FROM sales_records ORDER BY %s", column, column))
	if err != nil {
		return fmt.Errorf("failed to query distinct %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("failed to scan %s: %w", column, err)
		}
	}
	return rows.Err()
}

// CountSalesRecords returns the number of stored records.
func (s *SQLiteStorage) CountSalesRecords(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sales_records").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sales records: %w", err)
	}
	return count, nil
}

// RecordImport appends an entry to the import history.
func (s *SQLiteStorage) RecordImport(ctx context.Context, source string, total, inserted int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(source, "source"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO imports (source, total, inserted, imported_at) VALUES (?, ?, ?, ?)`,
		source, total, inserted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record import: %w", err)
	}
	return nil
}

// Imports returns the import history, newest first.
func (s *SQLiteStorage) Imports(ctx context.Context) ([]model.ImportBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, total, inserted, imported_at FROM imports ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.ImportBatch
	for rows.Next() {
		var b model.ImportBatch
		if err := rows.Scan(&b.ID, &b.Source, &b.Total, &b.Inserted, &b.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}
