package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts /process calls by outcome (ok/bad_request/failed).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talktime_requests_total",
			Help: "Total number of processed uploads by outcome",
		},
		[]string{"outcome"},
	)

	// SegmentsTotal counts classified segments by label (male/female/unknown).
	SegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talktime_segments_total",
			Help: "Total number of transcript segments by gender label",
		},
		[]string{"label"},
	)

	// SpeechSeconds accumulates classified speaking time per label.
	SpeechSeconds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talktime_speech_seconds_total",
			Help: "Total classified speech duration in seconds by gender label",
		},
		[]string{"label"},
	)

	// StageErrorsTotal counts model/service failures per stage
	// (normalize/asr/diarize/classify).
	StageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "talktime_stage_errors_total",
			Help: "Total number of pipeline stage failures",
		},
		[]string{"stage"},
	)

	// StageDuration observes wall time per pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "talktime_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
		},
		[]string{"stage"},
	)
)

func RecordRequest(outcome string) {
	RequestsTotal.WithLabelValues(outcome).Inc()
}

func RecordSegment(label string, seconds float64) {
	SegmentsTotal.WithLabelValues(label).Inc()
	if seconds > 0 {
		SpeechSeconds.WithLabelValues(label).Add(seconds)
	}
}

func RecordStage(stage string, seconds float64, err error) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
	if err != nil {
		StageErrorsTotal.WithLabelValues(stage).Inc()
	}
}
