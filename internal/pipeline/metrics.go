package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stageBuild    = "build"
	stageMine     = "mine"
	stageGenerate = "generate"
)

type metrics struct {
	runs         prometheus.Counter
	lookups      prometheus.Counter
	lookupMisses prometheus.Counter
	cacheHits    *prometheus.CounterVec
	stageSeconds *prometheus.HistogramVec
}

// newMetrics registers the pipeline collectors on reg. A nil reg leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) (m *metrics, err error) {
	// promauto panics on duplicate registration.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to register pipeline metrics: %v", r)
		}
	}()

	factory := promauto.With(reg)
	return &metrics{
		runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "basket",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Completed pipeline runs.",
		}),
		lookups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "basket",
			Subsystem: "pipeline",
			Name:      "lookups_total",
			Help:      "Rule lookups answered.",
		}),
		lookupMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "basket",
			Subsystem: "pipeline",
			Name:      "lookup_misses_total",
			Help:      "Rule lookups that found no rule.",
		}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "basket",
			Subsystem: "pipeline",
			Name:      "cache_hits_total",
			Help:      "Stage results served from cache.",
		}, []string{"stage"}),
		stageSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "basket",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent computing a stage.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"stage"}),
	}, nil
}

func (m *metrics) cacheHit(stage string) {
	m.cacheHits.WithLabelValues(stage).Inc()
}

func (m *metrics) observe(stage string, start time.Time) {
	m.stageSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
