package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/common"
	"github.com/Veraticus/basket-rules/internal/config"
	"github.com/Veraticus/basket-rules/internal/model"
	"github.com/Veraticus/basket-rules/internal/service"
	"github.com/Veraticus/basket-rules/internal/sheets"
)

// X and Y together on three days, X alone on the fourth.
const salesCSV = `Date,Point-of-Sale_ID,ProductFamily_ID,ProductCategory_ID,Sell-out units
2021-01-04,101,X,C1,1
2021-01-04,101,Y,C1,2
2021-01-05,101,X,C1,1
2021-01-05,101,Y,C2,1
2021-01-06,101,X,C1,3
2021-01-06,101,Y,C2,1
2021-01-07,101,X,C1,1
`

type harness struct {
	dir    string
	config string
	db     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	h := &harness{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		db:     filepath.Join(dir, "basket.db"),
	}
	require.NoError(t, os.WriteFile(h.config, []byte("logging:\n  level: error\n"), 0600))
	return h
}

// run executes the CLI with stdin and returns stdout.
func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", h.config, "--db", h.db, "--log-level", "error"}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) importSales(t *testing.T) {
	t.Helper()
	path := filepath.Join(h.dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0600))
	_, err := h.run(t, "", "import", path)
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "basket dev\n", out)
}

func TestImportAndOptions(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	out, err := h.run(t, "", "options", "--imports")
	require.NoError(t, err)
	assert.Contains(t, out, "101")
	assert.Contains(t, out, "2021")
	assert.Contains(t, out, "Q1")
	assert.Contains(t, out, "sales.csv")

	// Re-importing stores nothing new.
	h.importSales(t)
	out, err = h.run(t, "", "options", "--imports")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "sales.csv"))
}

func TestImport_NoFiles(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "import", filepath.Join(h.dir, "missing-*.csv"))
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.ErrorIs(t, err, common.ErrNoRecords)
}

func TestRules(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	out, err := h.run(t, "", "rules", "--pos", "101", "--year", "2021", "--quarter", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "4 transactions, 3 frequent itemsets")
	assert.Contains(t, out, "2 rules ranked by lift")
}

func TestRules_FlagsOverrideConfig(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	out, err := h.run(t, "", "rules", "--pos", "101", "--year", "2021", "--quarter", "1",
		"-m", "confidence", "-t", "0.9")
	require.NoError(t, err)
	assert.Contains(t, out, "1 rules ranked by confidence (minimum 0.9000)")
}

func TestRules_InvalidSettings(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown metric", args: []string{"-m", "leverage"}},
		{name: "support above one", args: []string{"-s", "1.5"}},
		{name: "confidence threshold above one", args: []string{"-m", "confidence", "-t", "2"}},
		{name: "bad quarter", args: []string{"--quarter", "7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			args := append([]string{"rules", "--pos", "101", "--year", "2021", "--quarter", "1"}, tt.args...)
			_, err := h.run(t, "", args...)
			var userErr *common.UserError
			assert.ErrorAs(t, err, &userErr)
		})
	}
}

func TestRules_PicksFilterInteractively(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	out, err := h.run(t, "1\n2021\n1\n", "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "Point of Sale")
	assert.Contains(t, out, "2 rules ranked by lift")
}

func TestRules_EmptyStore(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "rules")
	assert.ErrorIs(t, err, common.ErrNoRecords)

	msg, hint := common.Describe(err)
	assert.Equal(t, "No sales records yet", msg)
	assert.Contains(t, hint, "basket import")
}

func TestLookup(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)
	period := []string{"lookup", "--pos", "101", "--year", "2021", "--quarter", "1"}

	out, err := h.run(t, "", append(period, "-a", "X", "-c", "Y")...)
	require.NoError(t, err)
	assert.Contains(t, out, "{X} -> {Y}")
	assert.Contains(t, out, "0.7500")

	out, err = h.run(t, "", append(period, "-a", "X", "-c", "Z")...)
	require.NoError(t, err)
	assert.Contains(t, out, basket.NoRuleMessage)
}

func TestLookup_PicksItemsInteractively(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	// Antecedent Y by name, then the only remaining consequent by number.
	out, err := h.run(t, "Y\n1\n", "lookup", "--pos", "101", "--year", "2021", "--quarter", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "{Y} -> {X}")
	assert.Contains(t, out, "1.0000")
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	mock := sheets.NewMockWriter()
	orig := newReportWriter
	newReportWriter = func(context.Context) (service.ReportWriter, error) { return mock, nil }
	t.Cleanup(func() { newReportWriter = orig })

	out, err := h.run(t, "", "export", "--pos", "101", "--year", "2021", "--quarter", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 rules")

	require.Equal(t, 1, mock.WriteCallCount)
	assert.True(t, mock.Exported(model.Filter{PointOfSaleID: "101", Year: 2021, Quarter: 1}))
	assert.Equal(t, 2, mock.LastTable.Len())
	assert.Equal(t, model.Filter{PointOfSaleID: "101", Year: 2021, Quarter: 1}, mock.LastSummary.Filter)
	assert.Equal(t, 4, mock.LastSummary.Transactions)
	assert.Equal(t, basket.MetricLift, mock.LastSummary.Metric)
}

func TestExport_WriteFails(t *testing.T) {
	h := newHarness(t)
	h.importSales(t)

	mock := sheets.NewMockWriter()
	mock.SetWriteError(common.ErrExportFailed)
	orig := newReportWriter
	newReportWriter = func(context.Context) (service.ReportWriter, error) { return mock, nil }
	t.Cleanup(func() { newReportWriter = orig })

	_, err := h.run(t, "", "export", "--pos", "101", "--year", "2021", "--quarter", "1")
	assert.ErrorIs(t, err, common.ErrExportFailed)
}

func TestMigrateStatus(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "migrate", "--status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 0")

	out, err = h.run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated from version 0")

	out, err = h.run(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, listener, mux) }()

	require.Eventually(t, func() bool {
		resp, getErr := http.Get("http://" + listener.Addr().String() + "/health")
		if getErr != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv", "c.xlsx"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0600))
	}

	files, err := expandFiles([]string{filepath.Join(dir, "*.csv"), filepath.Join(dir, "c.xlsx"), filepath.Join(dir, "none-*")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.csv"),
		filepath.Join(dir, "b.csv"),
		filepath.Join(dir, "c.xlsx"),
	}, files)

	_, err = expandFiles([]string{"[invalid"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrNoRecords))
}

func TestWithout(t *testing.T) {
	items := []string{"X", "Y", "Z"}
	assert.Equal(t, []string{"X", "Z"}, without(items, "Y"))
	assert.Equal(t, []string{"X", "Y", "Z"}, items)
}

func TestPurgeOnHangup(t *testing.T) {
	calls := 0
	source := pipelineSourceFunc(func(context.Context, model.Filter) ([]model.SalesRecord, error) {
		calls++
		return nil, nil
	})
	p, err := newPipeline(source, config.Analysis{}, prometheus.NewRegistry())
	require.NoError(t, err)

	filter := model.Filter{PointOfSaleID: "101", Year: 2021, Quarter: 1}
	_, err = p.Items(context.Background(), filter, model.GranularityFamily)
	require.NoError(t, err)
	_, err = p.Items(context.Background(), filter, model.GranularityFamily)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "second call is cached")

	ctx, cancel := context.WithCancel(context.Background())
	hup := make(chan os.Signal)
	done := make(chan struct{})
	go func() {
		purgeOnHangup(ctx, hup, p)
		close(done)
	}()

	hup <- syscall.SIGHUP
	cancel()
	<-done

	_, err = p.Items(context.Background(), filter, model.GranularityFamily)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "purged cache reloads records")
}

type pipelineSourceFunc func(context.Context, model.Filter) ([]model.SalesRecord, error)

func (f pipelineSourceFunc) SalesRecords(ctx context.Context, filter model.Filter) ([]model.SalesRecord, error) {
	return f(ctx, filter)
}
