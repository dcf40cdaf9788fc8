package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generateRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigen_generate_requests_total",
			Help: "Generate requests by outcome (ok, invalid_input, text_error, image_error).",
		},
		[]string{"outcome"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unigen_stage_duration_seconds",
			Help:    "Duration of each generate stage.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
	textFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigen_text_fallbacks_total",
			Help: "Text responses produced in-band instead of by the backend.",
		},
		[]string{"reason"},
	)
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unigen_uploads_total",
			Help: "Image uploads by result (ok, failed).",
		},
		[]string{"result"},
	)
	backendAvailable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "unigen_backend_available",
			Help: "Backend availability detected at startup (1 available, 0 not).",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(
		generateRequestsTotal,
		stageDurationSeconds,
		textFallbacksTotal,
		uploadsTotal,
		backendAvailable,
	)
}

func GenerateRequest(outcome string) {
	generateRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStage records the time since start under stage.
func ObserveStage(stage string, start time.Time) {
	stageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func TextFallback(reason string) {
	textFallbacksTotal.WithLabelValues(reason).Inc()
}

func Upload(ok bool) {
	if ok {
		uploadsTotal.WithLabelValues("ok").Inc()
		return
	}
	uploadsTotal.WithLabelValues("failed").Inc()
}

func BackendAvailable(backend string, available bool) {
	if available {
		backendAvailable.WithLabelValues(backend).Set(1)
	} else {
		backendAvailable.WithLabelValues(backend).Set(0)
	}
}
