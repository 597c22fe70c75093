// Package service defines the interfaces shared between the application's layers.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Sales record operations
	SaveSalesRecords(ctx context.Context, records []model.SalesRecord) (int, error)
	SalesRecords(ctx context.Context, filter model.Filter) ([]model.SalesRecord, error)
	CountSalesRecords(ctx context.Context) (int, error)
	Selection(ctx context.Context) (model.Selection, error)

	// Import history
	RecordImport(ctx context.Context, source string, total, inserted int) error
	Imports(ctx context.Context) ([]model.ImportBatch, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// ReportWriter publishes a ranked rule table somewhere outside the process.
type ReportWriter interface {
	Write(ctx context.Context, rules basket.RuleTable, summary *ReportSummary) error
}

// ReportSummary describes the analysis a rule table came from.
type ReportSummary struct {
	GeneratedAt  time.Time
	Filter       model.Filter
	Granularity  model.Granularity
	Metric       basket.Metric
	MinSupport   float64
	Threshold    float64
	Transactions int
	Itemsets     int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
