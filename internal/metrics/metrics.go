// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the Prometheus metrics for the engine.
type Metrics struct {
	// Counters
	FlowsIngested      *prometheus.CounterVec
	Fingerprints       prometheus.Counter
	ScansCompleted     *prometheus.CounterVec
	AnomaliesFlagged   *prometheus.CounterVec
	DeviationsDetected *prometheus.CounterVec
	ExtractionWarnings prometheus.Counter
	SinkErrors         *prometheus.CounterVec

	// Histograms
	OpDuration *prometheus.HistogramVec
}

// New creates all engine metrics, unregistered.
func New() *Metrics {
	return &Metrics{
		FlowsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iotspectra_flows_ingested_total",
				Help: "Total flow records ingested by source",
			},
			[]string{"source"},
		),
		Fingerprints: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iotspectra_fingerprints_total",
				Help: "Total fingerprint operations completed",
			},
		),
		ScansCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iotspectra_scans_total",
				Help: "Total anomaly scans completed by strategy",
			},
			[]string{"strategy"},
		),
		AnomaliesFlagged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iotspectra_anomalies_flagged_total",
				Help: "Total flow samples flagged anomalous by strategy",
			},
			[]string{"strategy"},
		),
		DeviationsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iotspectra_deviations_detected_total",
				Help: "Total baseline deviations detected by severity",
			},
			[]string{"severity"},
		),
		ExtractionWarnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iotspectra_extraction_warnings_total",
				Help: "Total non-fatal feature extraction warnings",
			},
		),
		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iotspectra_sink_errors_total",
				Help: "Total errors writing results to a sink",
			},
			[]string{"sink"},
		),
		OpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iotspectra_op_duration_seconds",
				Help:    "Latency of engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.FlowsIngested,
		m.Fingerprints,
		m.ScansCompleted,
		m.AnomaliesFlagged,
		m.DeviationsDetected,
		m.ExtractionWarnings,
		m.SinkErrors,
		m.OpDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
