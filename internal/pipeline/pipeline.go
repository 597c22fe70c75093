// Package pipeline runs the rule-mining stages for a configuration and keeps
// the results of each stage so that a change to one knob only re-runs the
// stages downstream of it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/Veraticus/basket-rules/internal/basket"
	"github.com/Veraticus/basket-rules/internal/model"
)

// DefaultCacheSize is the number of entries kept per stage cache.
const DefaultCacheSize = 64

// RecordSource supplies the sales records of one outlet, year and quarter.
type RecordSource interface {
	SalesRecords(ctx context.Context, filter model.Filter) ([]model.SalesRecord, error)
}

// Config is one analysis configuration.
type Config struct {
	Filter      model.Filter
	Granularity model.Granularity
	Metric      basket.Metric
	MinSupport  float64
	Threshold   float64
}

// Validate checks the configuration before any stage runs.
func (c Config) Validate() error {
	if c.Granularity != model.GranularityFamily && c.Granularity != model.GranularityCategory {
		return fmt.Errorf("%w: %w: %q", basket.ErrPrecondition, model.ErrUnknownGranularity, c.Granularity)
	}
	if err := basket.ValidateSupport(c.MinSupport); err != nil {
		return err
	}
	return basket.ValidateThreshold(c.Metric, c.Threshold)
}

type matrixKey struct {
	filter      model.Filter
	granularity model.Granularity
}

type itemsetKey struct {
	matrixKey
	minSupport float64
}

// Result bundles every stage output for a configuration.
type Result struct {
	Config   Config
	Matrix   basket.Matrix
	Itemsets []basket.Itemset
	Rules    basket.RuleTable
}

// Options configures a Pipeline.
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	CacheSize  int
	Workers    int
}

// Pipeline orchestrates Build, Mine and Generate over a RecordSource.
// It is safe for concurrent use.
type Pipeline struct {
	source   RecordSource
	logger   *slog.Logger
	metrics  *metrics
	matrices *lru.Cache[matrixKey, basket.Matrix]
	itemsets *lru.Cache[itemsetKey, []basket.Itemset]
	tables   *lru.Cache[Config, basket.RuleTable]
	group    singleflight.Group
	workers  int

	// mu guards generation. Purge holds it for writing; cache writes hold it
	// for reading and are skipped when the generation they started in is gone.
	mu         sync.RWMutex
	generation uint64
}

// New creates a pipeline reading from source.
func New(source RecordSource, opts Options) (*Pipeline, error) {
	if source == nil {
		return nil, fmt.Errorf("record source is required")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	matrices, err := lru.New[matrixKey, basket.Matrix](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix cache: %w", err)
	}
	itemsets, err := lru.New[itemsetKey, []basket.Itemset](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create itemset cache: %w", err)
	}
	tables, err := lru.New[Config, basket.RuleTable](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create rule cache: %w", err)
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		source:   source,
		logger:   opts.Logger.With("component", "pipeline"),
		metrics:  m,
		matrices: matrices,
		itemsets: itemsets,
		tables:   tables,
		workers:  opts.Workers,
	}, nil
}

// Run returns every stage output for cfg, computing only what is not cached.
//
// Concurrent calls for the same cfg share one computation. That computation
// does not observe any caller's cancellation; each caller stops waiting when
// its own ctx is done while the others still get the result.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	gen := p.currentGeneration()
	ch := p.group.DoChan(flightKey(cfg, gen), func() (any, error) {
		return p.run(context.WithoutCancel(ctx), cfg, gen)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		if res.Shared {
			p.logger.Debug("Shared in-flight pipeline run", "filter", cfg.Filter.String())
		}
		return res.Val.(Result), nil
	}
}

// Rules returns the rule table for cfg.
func (p *Pipeline) Rules(ctx context.Context, cfg Config) (basket.RuleTable, error) {
	res, err := p.Run(ctx, cfg)
	if err != nil {
		return basket.RuleTable{}, err
	}
	return res.Rules, nil
}

// Lookup answers a point query against the rule table for cfg. A miss is
// reported as basket.ErrRuleNotFound.
func (p *Pipeline) Lookup(ctx context.Context, cfg Config, antecedent, consequent string) (basket.RuleMetrics, error) {
	table, err := p.Rules(ctx, cfg)
	if err != nil {
		return basket.RuleMetrics{}, err
	}
	p.metrics.lookups.Inc()
	metrics, err := table.Lookup(antecedent, consequent)
	if err != nil {
		p.metrics.lookupMisses.Inc()
		return basket.RuleMetrics{}, err
	}
	return metrics, nil
}

// Items returns the item identifiers seen for the filter at the granularity,
// the choices offered for lookups.
func (p *Pipeline) Items(ctx context.Context, filter model.Filter, g model.Granularity) ([]string, error) {
	m, err := p.matrix(ctx, matrixKey{filter: filter, granularity: g}, p.currentGeneration())
	if err != nil {
		return nil, err
	}
	return m.Items(), nil
}

// Purge drops every cached stage output, e.g. after new records are imported.
// Runs already in flight finish but do not cache what they computed.
func (p *Pipeline) Purge() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.matrices.Purge()
	p.itemsets.Purge()
	p.tables.Purge()
}

func (p *Pipeline) currentGeneration() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generation
}

// store runs add unless Purge has been called since gen was read.
func (p *Pipeline) store(gen uint64, add func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.generation == gen {
		add()
	}
}

func (p *Pipeline) run(ctx context.Context, cfg Config, gen uint64) (Result, error) {
	mk := matrixKey{filter: cfg.Filter, granularity: cfg.Granularity}
	m, err := p.matrix(ctx, mk, gen)
	if err != nil {
		return Result{}, err
	}

	sets, err := p.frequent(m, itemsetKey{matrixKey: mk, minSupport: cfg.MinSupport}, gen)
	if err != nil {
		return Result{}, err
	}

	table, err := p.rules(cfg, sets, gen)
	if err != nil {
		return Result{}, err
	}

	p.metrics.runs.Inc()
	p.logger.Debug("Pipeline run complete",
		"filter", cfg.Filter.String(),
		"granularity", cfg.Granularity,
		"transactions", m.Len(),
		"itemsets", len(sets),
		"rules", table.Len())

	return Result{Config: cfg, Matrix: m, Itemsets: sets, Rules: table}, nil
}

func (p *Pipeline) matrix(ctx context.Context, key matrixKey, gen uint64) (basket.Matrix, error) {
	if m, ok := p.matrices.Get(key); ok {
		p.metrics.cacheHit(stageBuild)
		return m, nil
	}

	records, err := p.source.SalesRecords(ctx, key.filter)
	if err != nil {
		return basket.Matrix{}, fmt.Errorf("failed to load sales records: %w", err)
	}

	start := time.Now()
	m := basket.Build(basket.Project(records, key.granularity))
	p.metrics.observe(stageBuild, start)

	if m.Empty() {
		p.logger.Info("No transactions for filter", "filter", key.filter.String())
	}

	p.store(gen, func() { p.matrices.Add(key, m) })
	return m, nil
}

func (p *Pipeline) frequent(m basket.Matrix, key itemsetKey, gen uint64) ([]basket.Itemset, error) {
	if sets, ok := p.itemsets.Get(key); ok {
		p.metrics.cacheHit(stageMine)
		return sets, nil
	}

	start := time.Now()
	sets, err := basket.Mine(m, key.minSupport, basket.WithWorkers(p.workers))
	if err != nil {
		return nil, err
	}
	p.metrics.observe(stageMine, start)

	p.store(gen, func() { p.itemsets.Add(key, sets) })
	return sets, nil
}

func (p *Pipeline) rules(cfg Config, sets []basket.Itemset, gen uint64) (basket.RuleTable, error) {
	if table, ok := p.tables.Get(cfg); ok {
		p.metrics.cacheHit(stageGenerate)
		return table, nil
	}

	start := time.Now()
	table, err := basket.Generate(sets, cfg.Metric, cfg.Threshold)
	if err != nil {
		return basket.RuleTable{}, err
	}
	p.metrics.observe(stageGenerate, start)

	p.store(gen, func() { p.tables.Add(cfg, table) })
	return table, nil
}

func flightKey(cfg Config, gen uint64) string {
	return strconv.FormatUint(gen, 10) + "|" +
		cfg.Filter.PointOfSaleID + "|" +
		strconv.Itoa(cfg.Filter.Year) + "|" +
		strconv.Itoa(cfg.Filter.Quarter) + "|" +
		string(cfg.Granularity) + "|" +
		string(cfg.Metric) + "|" +
		strconv.FormatFloat(cfg.MinSupport, 'g', -1, 64) + "|" +
		strconv.FormatFloat(cfg.Threshold, 'g', -1, 64)
}
