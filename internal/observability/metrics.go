package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for agent self-monitoring.
// It uses a custom registry to avoid polluting the global default;
// the health server merges it with the data registry at scrape time.
type Metrics struct {
	Registry *prometheus.Registry

	// Cycle metrics
	CycleDuration prometheus.Histogram
	CyclesTotal   *prometheus.CounterVec

	// Source metrics
	SourcePollDuration *prometheus.HistogramVec
	SourcePollErrors   *prometheus.CounterVec

	// Attribution metrics
	NegativeDeltaTotal    *prometheus.CounterVec
	AttributionCandidates *prometheus.GaugeVec
	ProfileEntries        prometheus.Gauge
	ProfileEvictionsTotal prometheus.Counter

	// State metrics
	AgentState *prometheus.GaugeVec

	// Memory pressure
	MemoryPressureTotal prometheus.Counter
}

// NewMetrics creates a Metrics instance with all self-monitoring
// metrics registered on a custom registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aura_agent_cycle_duration_seconds",
			Help:    "Duration of attribution cycle builds in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_agent_cycles_total",
			Help: "Total attribution cycles by outcome.",
		}, []string{"status"}),

		SourcePollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aura_agent_source_poll_duration_seconds",
			Help:    "Duration of source poll operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		SourcePollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_agent_source_poll_errors_total",
			Help: "Total failed source polls.",
		}, []string{"source"}),

		NegativeDeltaTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aura_agent_negative_delta_total",
			Help: "Times the known-process sum exceeded a device's reported used memory and was clamped.",
		}, []string{"gpu"}),
		AttributionCandidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aura_agent_attribution_candidates",
			Help: "Candidate containers considered for unknown-memory distribution per device.",
		}, []string{"gpu"}),
		ProfileEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aura_agent_profile_entries",
			Help: "Current number of historical container profiles.",
		}),
		ProfileEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aura_agent_profile_evictions_total",
			Help: "Total historical profiles evicted.",
		}),

		AgentState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aura_agent_state",
			Help: "Current agent state (1 = active, 0 = inactive).",
		}, []string{"state"}),

		MemoryPressureTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aura_agent_memory_pressure_total",
			Help: "Times the memory pressure monitor forced a GC.",
		}),
	}

	reg.MustRegister(
		m.CycleDuration,
		m.CyclesTotal,
		m.SourcePollDuration,
		m.SourcePollErrors,
		m.NegativeDeltaTotal,
		m.AttributionCandidates,
		m.ProfileEntries,
		m.ProfileEvictionsTotal,
		m.AgentState,
		m.MemoryPressureTotal,
	)

	return m
}

// SetState sets the given state gauge to 1 and all others to 0.
func (m *Metrics) SetState(state string) {
	for _, s := range []string{"starting", "running", "degraded", "stopped"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.AgentState.WithLabelValues(s).Set(v)
	}
}
