package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// All metrics are low-cardinality (no track_id/frame-level labels).

var (
	// ZoneEntriesTotal counts persistent (never-decremented) zone entries.
	ZoneEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_entries_total",
			Help: "Total counted zone entries by camera and zone",
		},
		[]string{"camera", "zone"},
	)

	// ZoneExitsTotal counts zone exits.
	ZoneExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_exits_total",
			Help: "Total counted zone exits by camera and zone",
		},
		[]string{"camera", "zone"},
	)

	// DetectionLatency tracks detector-sidecar round-trip latency.
	DetectionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detection_latency_ms",
			Help:    "Detector sidecar round-trip latency in milliseconds",
			Buckets: []float64{50, 100, 200, 500, 1000, 2000, 5000},
		},
		[]string{"stream", "model"},
	)

	// FramesDroppedTotal counts frames a stream worker could not read or
	// whose processing failed.
	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frames_dropped_total",
			Help: "Total frame reads that failed or were skipped",
		},
		[]string{"stream"},
	)

	// ThreatDetectionsTotal counts suspicious/threat boxes surfaced to the UI.
	ThreatDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threat_detections_total",
			Help: "Total suspicious/threat boxes surfaced, by category",
		},
		[]string{"stream", "category"},
	)

	// LLMAdjudicationsTotal counts completed LLM calls by outcome.
	LLMAdjudicationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_adjudications_total",
			Help: "Total LLM adjudication calls by outcome (false_positive, confirmed, error)",
		},
		[]string{"outcome"},
	)

	// LLMAdjudicationLatency tracks LLM call latency.
	LLMAdjudicationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_adjudication_latency_ms",
			Help:    "LLM adjudication call latency in milliseconds",
			Buckets: []float64{200, 500, 1000, 2000, 5000, 10000, 20000},
		},
	)

	// LLMCooldownBlockedTotal counts candidate adjudications skipped by the cooldown gate.
	LLMCooldownBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "llm_cooldown_blocked_total",
			Help: "Total LLM adjudications skipped due to an active cooldown",
		},
	)

	// ActiveStreams is a gauge of currently-running stream workers.
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_streams",
			Help: "Current number of active stream workers",
		},
	)
)

func RecordEntry(camera, zone string) {
	ZoneEntriesTotal.WithLabelValues(camera, zone).Inc()
}

func RecordExit(camera, zone string) {
	ZoneExitsTotal.WithLabelValues(camera, zone).Inc()
}

func RecordDetectionLatency(stream, model string, latencyMs float64) {
	DetectionLatency.WithLabelValues(stream, model).Observe(latencyMs)
}

func RecordFrameDrop(stream string) {
	FramesDroppedTotal.WithLabelValues(stream).Inc()
}

func RecordThreatDetection(stream, category string) {
	ThreatDetectionsTotal.WithLabelValues(stream, category).Inc()
}

func RecordLLMAdjudication(outcome string, latencyMs float64) {
	LLMAdjudicationsTotal.WithLabelValues(outcome).Inc()
	LLMAdjudicationLatency.Observe(latencyMs)
}

func RecordLLMCooldownBlocked() {
	LLMCooldownBlockedTotal.Inc()
}

func SetActiveStreams(n int) {
	ActiveStreams.Set(float64(n))
}
