// Package testutil provides test utilities backed by a real, in-memory SQLite
// store.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/storage"
	"github.com/Veraticus/basket-rules/internal/testutil/baskets"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	Records []model.SalesRecord
}

// SetupTestDB creates a new in-memory test database seeded with records.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, baskets.FixturePair.Build().Records())
func SetupTestDB(t *testing.T, records []model.SalesRecord) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{Records: records})
}

// SetupTestDBWithFixture creates a test database holding a predefined fixture.
func SetupTestDBWithFixture(t *testing.T, fixture baskets.Fixture) *TestDB {
	t.Helper()
	return SetupTestDB(t, fixture.Build().Records())
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, *storage.SQLiteStorage) error
	Records        []model.SalesRecord
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	ctx := context.Background()

	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	if len(opts.Records) > 0 {
		if _, err := store.SaveSalesRecords(ctx, opts.Records); err != nil {
			t.Fatalf("failed to seed sales records: %v", err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		Records: opts.Records,
		t:       t,
	}
}

// MustCount returns the number of stored sales records or fails the test.
func (db *TestDB) MustCount() int {
	db.t.Helper()
	n, err := db.Storage.CountSalesRecords(context.Background())
	if err != nil {
		db.t.Fatalf("failed to count sales records: %v", err)
	}
	return n
}
