package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the Prometheus collectors exported by the pipeline.
type Metrics struct {
	StageDuration       *prometheus.HistogramVec
	TurnOutcomes        *prometheus.CounterVec
	FallbackInvocations prometheus.Counter
	UpstreamCostCents   prometheus.Counter
	UpstreamTokens      prometheus.Counter
	DeliveriesTotal     *prometheus.CounterVec
	BackpressureTotal   *prometheus.CounterVec
	EvictionsTotal      *prometheus.CounterVec
	CircuitState        prometheus.Gauge
	PoolActive          prometheus.Gauge
}

// NewMetrics registers the pipeline collectors on the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsOn(prometheus.DefaultRegisterer)
}

// NewMetricsOn registers the pipeline collectors on the given registerer.
// Tests pass a fresh registry to avoid duplicate registration panics.
func NewMetricsOn(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "replypipe_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage", "outcome"}),
		TurnOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replypipe_turn_outcomes_total",
			Help: "Terminal outcomes of pipeline turns",
		}, []string{"outcome"}),
		FallbackInvocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "replypipe_fallback_invocations_total",
			Help: "Gateway invocations served by the deterministic fallback path",
		}),
		UpstreamCostCents: factory.NewCounter(prometheus.CounterOpts{
			Name: "replypipe_upstream_cost_cents_total",
			Help: "Estimated upstream model spend in cents",
		}),
		UpstreamTokens: factory.NewCounter(prometheus.CounterOpts{
			Name: "replypipe_upstream_tokens_total",
			Help: "Token usage reported by the model provider",
		}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replypipe_router_deliveries_total",
			Help: "Messages delivered to topic subscribers",
		}, []string{"topic"}),
		BackpressureTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replypipe_router_backpressure_total",
			Help: "Messages rejected by the router throttles",
		}, []string{"topic"}),
		EvictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replypipe_router_evictions_total",
			Help: "Messages evicted oldest-first from saturated topic queues",
		}, []string{"topic"}),
		CircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replypipe_gateway_circuit_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		PoolActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replypipe_gateway_pool_active",
			Help: "Connection pool leases currently held",
		}),
	}
}

// PromSink adapts Metrics to the Sink interface for stage/turn events.
type PromSink struct {
	metrics *Metrics
}

// NewPromSink wraps registered metrics as an event sink.
func NewPromSink(m *Metrics) *PromSink { return &PromSink{metrics: m} }

// Record implements Sink.
func (s *PromSink) Record(ev Event) {
	outcome := ev.Outcome
	if outcome == "" {
		outcome = "ok"
	}
	s.metrics.StageDuration.WithLabelValues(ev.Stage, outcome).Observe(ev.Duration.Seconds())
	if ev.Degraded {
		s.metrics.FallbackInvocations.Inc()
	}
	if ev.CostCents > 0 {
		s.metrics.UpstreamCostCents.Add(float64(ev.CostCents))
	}
	if ev.Tokens > 0 {
		s.metrics.UpstreamTokens.Add(float64(ev.Tokens))
	}
}
