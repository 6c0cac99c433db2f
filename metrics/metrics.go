package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// StageDuration tracks per-stage latency by outcome (ok|degraded|fatal).
	StageDuration *prometheus.HistogramVec
	// Frames counts decoded frames by whether a face was detected.
	Frames *prometheus.CounterVec
	// Reports counts finished analyses by pass/fail.
	Reports *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sincerity_stage_duration_seconds",
				Help:    "Time spent in each analysis stage",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage", "outcome"},
		),
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sincerity_frames_total",
				Help: "Decoded video frames by face detection result",
			},
			[]string{"detected"},
		),
		Reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sincerity_reports_total",
				Help: "Completed analyses by evaluation result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.StageDuration, m.Frames, m.Reports)
	}
	return m
}

func (m *Metrics) ObserveStage(stage, outcome string, since time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, outcome).Observe(time.Since(since).Seconds())
}

func (m *Metrics) ObserveFrame(detected bool) {
	if m == nil {
		return
	}
	label := "false"
	if detected {
		label = "true"
	}
	m.Frames.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveReport(passed bool) {
	if m == nil {
		return
	}
	result := "fail"
	if passed {
		result = "pass"
	}
	m.Reports.WithLabelValues(result).Inc()
}
