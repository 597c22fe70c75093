package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/service"
)

var _ service.ReportWriter = (*MockWriter)(nil)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, table basket.RuleTable, summary *service.ReportSummary) error
	LastSummary    *service.ReportSummary
	WriteCalls     []WriteCall
	LastTable      basket.RuleTable
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall represents a single call to Write.
type WriteCall struct {
	Error   error
	Summary *service.ReportSummary
	Table   basket.RuleTable
	Filter  model.Filter // Zero when the summary was nil
	Rules   int
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// Write implements the ReportWriter interface.
func (m *MockWriter) Write(ctx context.Context, table basket.RuleTable, summary *service.ReportSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastTable = table
	m.LastSummary = summary

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, table, summary)
	}

	call := WriteCall{
		Table:   table,
		Summary: summary,
		Rules:   table.Len(),
		Error:   err,
	}
	if summary != nil {
		call.Filter = summary.Filter
	}
	m.WriteCalls = append(m.WriteCalls, call)

	return err
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.WriteCalls = make([]WriteCall, 0)
	m.LastTable = basket.RuleTable{}
	m.LastSummary = nil
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// Exported reports whether a successful write covered filter.
func (m *MockWriter) Exported(filter model.Filter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.WriteCalls {
		if c.Error == nil && c.Filter == filter {
			return true
		}
	}
	return false
}

// SetWriteError configures the mock to return an error on every Write call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ basket.RuleTable, _ *service.ReportSummary) error {
		return err
	}
}
