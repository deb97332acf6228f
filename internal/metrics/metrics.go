// Package metrics exposes Prometheus collectors for the viewer lifecycle,
// graph construction and bus faults.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rtsp_viewer"

var (
	GraphBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "graph_builds_total",
		Help:      "Graph construction attempts by decoding tier and result",
	}, []string{"tier", "result"})

	BusFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_faults_total",
		Help:      "Terminal bus events by fault category",
	}, []string{"category"})

	PadNegotiationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pad_negotiations_total",
		Help:      "Dynamic pad discoveries by outcome",
	}, []string{"outcome"})

	LifecycleState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lifecycle_state",
		Help:      "Current lifecycle state (0=idle, 1=building, 2=playing, 3=stopping)",
	})

	StopDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stop_duration_seconds",
		Help:      "Time spent tearing down a playing graph",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	HardwareLeases = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hardware_leases",
		Help:      "Hardware decoding contexts currently held",
	}, []string{"device"})

	SurfaceFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "surface_frames_total",
		Help:      "Decoded frames copied to the presentation surface",
	})
)

// RecordBuild records one graph construction attempt.
func RecordBuild(tier string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	GraphBuildsTotal.WithLabelValues(tier, result).Inc()
}

// RecordFault records a terminal bus event.
func RecordFault(category string) {
	if category == "" {
		category = "unknown"
	}
	BusFaultsTotal.WithLabelValues(category).Inc()
}

// RecordNegotiation records a pad discovery outcome.
func RecordNegotiation(outcome string) {
	PadNegotiationsTotal.WithLabelValues(outcome).Inc()
}
