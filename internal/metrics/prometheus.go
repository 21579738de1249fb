// Package metrics records pipeline counters and timings with Prometheus and
// exports them in the node exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the pipeline metrics. A nil *Manager is valid and records
// nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	recordsIngested  *prometheus.CounterVec
	gamesBuilt       prometheus.Counter
	gamesMalformed   prometheus.Counter
	shotsClassified  prometheus.Counter
	stonesExcluded   *prometheus.CounterVec
	featureRows      *prometheus.CounterVec
	aggregations     *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	lastRunTimestamp prometheus.Gauge
}

// NewManager creates a metrics manager on its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "curlmetrics",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.recordsIngested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_ingested_total",
		Help:      "Source rows read, by file kind",
	}, []string{"kind"})

	m.gamesBuilt = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_reconstructed_total",
		Help:      "Games whose end contexts were reconstructed",
	})

	m.gamesMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "games_malformed_total",
		Help:      "Games excluded because their end rows were inconsistent",
	})

	m.shotsClassified = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "shots_classified_total",
		Help:      "Shot snapshots run through the geometry classifier",
	})

	m.stonesExcluded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stones_excluded_total",
		Help:      "Stone slots left out of zone counts, by reason",
	}, []string{"reason"})

	m.featureRows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feature_rows_total",
		Help:      "Feature rows produced, by table",
	}, []string{"table"})

	m.aggregations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregations_total",
		Help:      "Cross tables computed, by analysis",
	}, []string{"analysis"})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent per pipeline stage",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.lastRunTimestamp = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last pipeline run finished",
	})
}

func (m *Manager) on() bool { return m != nil && m.enabled }

// RecordIngest counts rows read for one file kind.
func (m *Manager) RecordIngest(kind string, n int) {
	if !m.on() {
		return
	}
	m.recordsIngested.WithLabelValues(kind).Add(float64(n))
}

// RecordGames counts reconstructed and malformed games.
func (m *Manager) RecordGames(built, malformed int) {
	if !m.on() {
		return
	}
	m.gamesBuilt.Add(float64(built))
	m.gamesMalformed.Add(float64(malformed))
}

// RecordSnapshot counts one classified shot and its excluded stone slots.
func (m *Manager) RecordSnapshot(notThrown, offSheet, missing int) {
	if !m.on() {
		return
	}
	m.shotsClassified.Inc()
	m.stonesExcluded.WithLabelValues("not_thrown").Add(float64(notThrown))
	m.stonesExcluded.WithLabelValues("off_sheet").Add(float64(offSheet))
	m.stonesExcluded.WithLabelValues("missing").Add(float64(missing))
}

// RecordFeatureRows counts rows emitted into a feature table.
func (m *Manager) RecordFeatureRows(table string, n int) {
	if !m.on() {
		return
	}
	m.featureRows.WithLabelValues(table).Add(float64(n))
}

// RecordAggregation counts one computed cross table.
func (m *Manager) RecordAggregation(analysis string) {
	if !m.on() {
		return
	}
	m.aggregations.WithLabelValues(analysis).Inc()
}

// ObserveStage records how long a stage took since start.
func (m *Manager) ObserveStage(stage string, start time.Time) {
	if !m.on() {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// MarkRun stamps the completion time of a run.
func (m *Manager) MarkRun(at time.Time) {
	if !m.on() {
		return
	}
	m.lastRunTimestamp.Set(float64(at.Unix()))
}

// Gatherer exposes the registry for export.
func (m *Manager) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Manager) WriteTextfile(path string) error {
	if m == nil {
		return fmt.Errorf("%w: no metrics manager", ErrExportFailed)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	return nil
}
