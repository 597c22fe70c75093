package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/model"
)

type fakeSource struct {
	err     error
	records []model.SalesRecord
	calls   atomic.Int32
	delay   time.Duration
}

func (f *fakeSource) SalesRecords(_ context.Context, filter model.Filter) ([]model.SalesRecord, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []model.SalesRecord
	for _, r := range f.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func sale(day int, family, category string) model.SalesRecord {
	return model.SalesRecord{
		Date:              time.Date(2021, 1, day, 0, 0, 0, 0, time.UTC),
		PointOfSaleID:     "101",
		ProductFamilyID:   family,
		ProductCategoryID: category,
		SellOutUnits:      1,
		Year:              2021,
		Quarter:           1,
	}
}

// X and Y together on three days, X alone on the fourth.
func scenarioSource() *fakeSource {
	return &fakeSource{records: []model.SalesRecord{
		sale(4, "X", "C1"), sale(4, "Y", "C1"),
		sale(5, "X", "C1"), sale(5, "Y", "C2"),
		sale(6, "X", "C1"), sale(6, "Y", "C2"),
		sale(7, "X", "C1"),
	}}
}

func testConfig() Config {
	return Config{
		Filter:      model.Filter{PointOfSaleID: "101", Year: 2021, Quarter: 1},
		Granularity: model.GranularityFamily,
		Metric:      basket.MetricLift,
		MinSupport:  0.5,
		Threshold:   0,
	}
}

func newTestPipeline(t *testing.T, src RecordSource) *Pipeline {
	t.Helper()
	p, err := New(src, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	_, err := New(nil, Options{})
	require.Error(t, err)

	p, err := New(scenarioSource(), Options{})
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(scenarioSource(), Options{Registerer: reg})
	require.NoError(t, err)

	_, err = New(scenarioSource(), Options{Registerer: reg})
	assert.Error(t, err)
}

func TestPipeline_Run(t *testing.T) {
	p := newTestPipeline(t, scenarioSource())

	res, err := p.Run(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Matrix.Len())
	assert.Len(t, res.Itemsets, 3)
	require.Equal(t, 2, res.Rules.Len())

	m, err := res.Rules.Lookup("X", "Y")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, m.Support, 1e-9)
	assert.InDelta(t, 0.75, m.Confidence, 1e-9)
	assert.InDelta(t, 1.0, m.Lift, 1e-9)
}

func TestPipeline_CachesUpstreamStages(t *testing.T) {
	src := scenarioSource()
	p := newTestPipeline(t, src)
	ctx := context.Background()

	cfg := testConfig()
	_, err := p.Run(ctx, cfg)
	require.NoError(t, err)

	// Only the rule stage depends on metric and threshold.
	cfg.Metric = basket.MetricConfidence
	cfg.Threshold = 0.9
	res, err := p.Run(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, res.Rules.Len())
	assert.Equal(t, "{Y} -> {X}", res.Rules.Rules()[0].String())

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.cacheHits.WithLabelValues(stageBuild)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.cacheHits.WithLabelValues(stageMine)))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.metrics.cacheHits.WithLabelValues(stageGenerate)))

	// A new granularity needs a fresh matrix.
	cfg.Granularity = model.GranularityCategory
	_, err = p.Run(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestPipeline_Purge(t *testing.T) {
	src := scenarioSource()
	p := newTestPipeline(t, src)
	ctx := context.Background()

	_, err := p.Run(ctx, testConfig())
	require.NoError(t, err)
	_, err = p.Run(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())

	p.Purge()
	_, err = p.Run(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestPipeline_InvalidConfig(t *testing.T) {
	tests := []struct {
		mutate func(*Config)
		name   string
	}{
		{name: "granularity", mutate: func(c *Config) { c.Granularity = "family" }},
		{name: "support above one", mutate: func(c *Config) { c.MinSupport = 1.5 }},
		{name: "negative support", mutate: func(c *Config) { c.MinSupport = -0.1 }},
		{name: "metric", mutate: func(c *Config) { c.Metric = "leverage" }},
		{name: "confidence threshold", mutate: func(c *Config) {
			c.Metric = basket.MetricConfidence
			c.Threshold = 2
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := scenarioSource()
			p := newTestPipeline(t, src)

			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := p.Run(context.Background(), cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, basket.ErrPrecondition)
			assert.Zero(t, src.calls.Load(), "nothing is loaded for an invalid configuration")
		})
	}
}

func TestPipeline_SourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	p := newTestPipeline(t, &fakeSource{err: boom})

	_, err := p.Run(context.Background(), testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_EmptyFilter(t *testing.T) {
	p := newTestPipeline(t, scenarioSource())

	cfg := testConfig()
	cfg.Filter.PointOfSaleID = "999"
	res, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Matrix.Empty())
	assert.Empty(t, res.Itemsets)
	assert.Zero(t, res.Rules.Len())
}

func TestPipeline_Lookup(t *testing.T) {
	p := newTestPipeline(t, scenarioSource())
	ctx := context.Background()

	m, err := p.Lookup(ctx, testConfig(), "Y", "X")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.Confidence, 1e-9)

	_, err = p.Lookup(ctx, testConfig(), "X", "Z")
	assert.ErrorIs(t, err, basket.ErrRuleNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.lookups))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.lookupMisses))
}

func TestPipeline_Items(t *testing.T) {
	p := newTestPipeline(t, scenarioSource())
	cfg := testConfig()

	items, err := p.Items(context.Background(), cfg.Filter, model.GranularityCategory)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, items)
}

func TestPipeline_ConcurrentRuns(t *testing.T) {
	src := scenarioSource()
	src.delay = 20 * time.Millisecond
	p := newTestPipeline(t, src)

	var wg sync.WaitGroup
	results := make([]basket.RuleTable, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = p.Rules(context.Background(), testConfig())
		}()
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 2, results[i].Len())
	}
	assert.Equal(t, int32(1), src.calls.Load(), "concurrent runs share one load")
}

func TestFlightKey(t *testing.T) {
	a := testConfig()
	b := testConfig()
	assert.Equal(t, flightKey(a, 0), flightKey(b, 0))
	assert.NotEqual(t, flightKey(a, 0), flightKey(a, 1), "a purge starts a new flight")

	b.Threshold = 0.25
	assert.NotEqual(t, flightKey(a, 0), flightKey(b, 0))
}

// gatedSource holds every load until release is closed, or until the load's
// context is done.
type gatedSource struct {
	*fakeSource
	entered chan struct{}
	release chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		fakeSource: scenarioSource(),
		entered:    make(chan struct{}, 8),
		release:    make(chan struct{}),
	}
}

func (g *gatedSource) SalesRecords(ctx context.Context, filter model.Filter) ([]model.SalesRecord, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeSource.SalesRecords(ctx, filter)
}

func TestPipeline_CancelledCallerDoesNotFailOthers(t *testing.T) {
	src := newGatedSource()
	p := newTestPipeline(t, src)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := p.Rules(ctxA, testConfig())
		errA <- err
	}()
	<-src.entered

	type outcome struct {
		table basket.RuleTable
		err   error
	}
	resB := make(chan outcome, 1)
	go func() {
		table, err := p.Rules(context.Background(), testConfig())
		resB <- outcome{table, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(src.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, 2, b.table.Len())
	assert.Equal(t, int32(1), src.calls.Load(), "both callers shared one load")
}

func TestPipeline_PurgeDuringRunSkipsCaching(t *testing.T) {
	src := newGatedSource()
	p := newTestPipeline(t, src)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, testConfig())
		done <- err
	}()
	<-src.entered

	p.Purge()
	close(src.release)
	require.NoError(t, <-done)

	_, err := p.Run(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "the run that straddled the purge left nothing cached")

	_, err = p.Run(ctx, testConfig())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load(), "runs after the purge cache normally")
}
