// Package metrics provides Prometheus metrics for the inference pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline stage metrics
var (
	// stageExecutionsTotal records every engine attempt per stage.
	// Labels:
	//   - stage: Pipeline stage (e.g., "asr", "mt", "tts", "lid", "ingest")
	//   - engine: Engine identifier (e.g., "whisper", "indictrans")
	//   - status: Attempt outcome ("success", "failed", "timeout")
	stageExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_executions_total",
			Help: "Total number of pipeline stage engine attempts",
		},
		[]string{"stage", "engine", "status"},
	)

	// stageDuration records how long one engine attempt took.
	// Buckets span quick validation failures up to long model inference.
	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stage engine attempts in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"stage", "engine"},
	)

	// fallbackEventsTotal records engine substitutions within a stage.
	// Labels:
	//   - stage: Pipeline stage where the fallback happened
	//   - from_engine: Engine that failed or declined the request
	//   - to_engine: Engine the stage fell back to
	fallbackEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_fallback_events_total",
			Help: "Total number of engine fallback events per stage",
		},
		[]string{"stage", "from_engine", "to_engine"},
	)
)

func init() {
	prometheus.MustRegister(stageExecutionsTotal)
	prometheus.MustRegister(stageDuration)
	prometheus.MustRegister(fallbackEventsTotal)
}

// RecordStageExecution records one engine attempt outcome.
func RecordStageExecution(stage, engine, status string) {
	stageExecutionsTotal.WithLabelValues(stage, engine, status).Inc()
}

// RecordStageDuration records the duration of one engine attempt.
func RecordStageDuration(stage, engine string, durationSeconds float64) {
	stageDuration.WithLabelValues(stage, engine).Observe(durationSeconds)
}

// RecordFallbackEvent records a single-hop engine substitution.
func RecordFallbackEvent(stage, fromEngine, toEngine string) {
	fallbackEventsTotal.WithLabelValues(stage, fromEngine, toEngine).Inc()
}
