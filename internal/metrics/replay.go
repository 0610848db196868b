package metrics

import (
	"time"

	"textreplay/internal/replay"
)

// ReplayMetrics holds the metrics recorded for reconstruction runs.
type ReplayMetrics struct {
	registry *Registry

	// Counters
	RunsTotal    *Counter
	RunsFailed   *Counter
	EventsTotal  *Counter
	InFocusTotal *Counter
	ChangedTotal *Counter

	// Gauges
	LastRunTs      *Gauge
	LastTextLength *Gauge

	// Histograms
	ReplayDuration *Histogram
}

// NewReplayMetrics registers the replay metrics in registry.
func NewReplayMetrics(registry *Registry) *ReplayMetrics {
	if registry == nil {
		registry = NewRegistry("textreplay")
	}

	return &ReplayMetrics{
		registry: registry,

		RunsTotal: registry.Counter(
			"runs_total",
			"Total number of reconstruction runs",
			nil,
		),
		RunsFailed: registry.Counter(
			"runs_failed_total",
			"Reconstruction runs stopped by a fatal error",
			nil,
		),
		EventsTotal: registry.Counter(
			"events_total",
			"Events read across all runs",
			nil,
		),
		InFocusTotal: registry.Counter(
			"events_in_focus_total",
			"Events replayed while the target application had focus",
			nil,
		),
		ChangedTotal: registry.Counter(
			"edits_total",
			"Events that changed the document text",
			nil,
		),
		LastRunTs: registry.Gauge(
			"last_run_timestamp_seconds",
			"Unix time of the most recent run",
			nil,
		),
		LastTextLength: registry.Gauge(
			"last_text_length_chars",
			"Length of the most recently reconstructed text in characters",
			nil,
		),
		ReplayDuration: registry.Histogram(
			"replay_duration_seconds",
			"Time taken to reconstruct one log",
			nil,
			DurationBuckets,
		),
	}
}

// Registry returns the registry the metrics are recorded in.
func (m *ReplayMetrics) Registry() *Registry {
	return m.registry
}

// ObserveRun records one finished or failed run.
func (m *ReplayMetrics) ObserveRun(res *replay.Result, d time.Duration, runErr error) {
	m.RunsTotal.Inc()
	if runErr != nil {
		m.RunsFailed.Inc()
	}
	m.ReplayDuration.ObserveDuration(d)
	m.LastRunTs.Set(time.Now().Unix())

	if res == nil {
		return
	}
	m.EventsTotal.Add(uint64(res.Events))
	m.InFocusTotal.Add(uint64(res.InFocus))
	m.ChangedTotal.Add(uint64(res.Changed))
	m.LastTextLength.Set(int64(len([]rune(res.Text))))

	for _, diag := range res.Diagnostics {
		m.registry.Counter(
			"diagnostics_total",
			"Diagnostics recorded, by kind and severity",
			Labels{"kind": string(diag.Kind), "severity": string(diag.Severity)},
		).Inc()
	}
}
