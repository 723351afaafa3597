package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	stageTotal      *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	runsInFlight    prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	chunksCommitted *prometheus.CounterVec
	chunksEmbedded  *prometheus.CounterVec
}

func NewPipelineMetrics(service string) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "stage_runs_total",
			Help:      "Total pipeline stage runs by stage and outcome.",
		},
		[]string{"service", "stage", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds by stage and outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "runs_in_flight",
			Help:      "Number of in-flight pipeline runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	chunksCommitted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "chunks_committed_total",
			Help:      "Total chunk rows committed by the chunking stage.",
		},
		[]string{"service"},
	)
	chunksEmbedded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docpipe",
			Subsystem: "worker",
			Name:      "chunks_embedded_total",
			Help:      "Total chunks embedded and stored in the vector index.",
		},
		[]string{"service"},
	)

	registry.MustRegister(stageTotal, stageDuration, runsInFlight, queueLag, chunksCommitted, chunksEmbedded)

	return &PipelineMetrics{
		registry:        registry,
		service:         service,
		stageTotal:      stageTotal,
		stageDuration:   stageDuration,
		runsInFlight:    runsInFlight,
		queueLag:        queueLag,
		chunksCommitted: chunksCommitted,
		chunksEmbedded:  chunksEmbedded,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StartRun() {
	m.runsInFlight.Inc()
}

func (m *PipelineMetrics) FinishStage(service, stage string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.stageTotal.WithLabelValues(service, stage, status).Inc()
	m.stageDuration.WithLabelValues(service, stage, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) FinishRun() {
	m.runsInFlight.Dec()
}

func (m *PipelineMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// ChunksCommitted and ChunksEmbedded receive per-batch counts from the
// pipeline stages.
func (m *PipelineMetrics) ChunksCommitted(count int) {
	if count <= 0 {
		return
	}
	m.chunksCommitted.WithLabelValues(m.service).Add(float64(count))
}

func (m *PipelineMetrics) ChunksEmbedded(count int) {
	if count <= 0 {
		return
	}
	m.chunksEmbedded.WithLabelValues(m.service).Add(float64(count))
}
