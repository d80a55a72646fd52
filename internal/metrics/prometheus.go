package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exports runtime metrics through a prometheus registry.
//
// Metrics:
//   - <ns>_<sub>_executions_total{mode,status}
//   - <ns>_<sub>_execution_duration_seconds{mode}
//   - <ns>_<sub>_cache_hits_total{source}
//   - <ns>_<sub>_cache_misses_total{source}
//   - <ns>_<sub>_cache_evictions_total{source}
//   - <ns>_<sub>_pool_size{source}
//   - <ns>_<sub>_sessions_created_total{source}
//   - <ns>_<sub>_sessions_disposed_total{source}
type PrometheusSink struct {
	executions       *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	cacheEvictions   *prometheus.CounterVec
	poolSize         *prometheus.GaugeVec
	sessionsCreated  *prometheus.CounterVec
	sessionsDisposed *prometheus.CounterVec
}

// NewPrometheusSink creates and registers the runtime metrics with the
// provided registry.
func NewPrometheusSink(namespace, subsystem string, registry *prometheus.Registry) *PrometheusSink {
	s := &PrometheusSink{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "executions_total",
				Help:      "Total number of rule executions by mode and status",
			},
			[]string{"mode", "status"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "execution_duration_seconds",
				Help:      "Rule execution wall time in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),

		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of compiled artifact cache hits",
			},
			[]string{"source"},
		),

		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of compiled artifact cache misses",
			},
			[]string{"source"},
		),

		cacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_evictions_total",
				Help:      "Total number of compiled artifact evictions",
			},
			[]string{"source"},
		),

		poolSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pool_size",
				Help:      "Current number of pooled session handles",
			},
			[]string{"source"},
		),

		sessionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_created_total",
				Help:      "Total number of execution sessions created",
			},
			[]string{"source"},
		),

		sessionsDisposed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_disposed_total",
				Help:      "Total number of execution sessions disposed",
			},
			[]string{"source"},
		),
	}

	registry.MustRegister(
		s.executions,
		s.duration,
		s.cacheHits,
		s.cacheMisses,
		s.cacheEvictions,
		s.poolSize,
		s.sessionsCreated,
		s.sessionsDisposed,
	)

	return s
}

func (s *PrometheusSink) IncExecution(mode, status string) {
	s.executions.WithLabelValues(mode, status).Inc()
}

func (s *PrometheusSink) ObserveExecutionDuration(mode string, d time.Duration) {
	s.duration.WithLabelValues(mode).Observe(d.Seconds())
}

func (s *PrometheusSink) IncCacheHit(source string) {
	s.cacheHits.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) IncCacheMiss(source string) {
	s.cacheMisses.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) IncCacheEviction(source string) {
	s.cacheEvictions.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) SetPoolSize(source string, size int) {
	s.poolSize.WithLabelValues(source).Set(float64(size))
}

func (s *PrometheusSink) IncSessionCreated(source string) {
	s.sessionsCreated.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) IncSessionDisposed(source string) {
	s.sessionsDisposed.WithLabelValues(source).Inc()
}
