package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLM and pipeline Prometheus metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitesearch",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "stage", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sitesearch",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"provider", "model", "stage"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitesearch",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	LLMErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitesearch",
			Name:      "llm_errors_total",
			Help:      "Total LLM errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	PipelineDegradationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sitesearch",
			Name:      "pipeline_degradations_total",
			Help:      "Pipeline steps that fell back to degraded output",
		},
		[]string{"stage"}, // "extract" / "synthesize"
	)

	SearchResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sitesearch",
			Name:      "search_results_count",
			Help:      "Number of documents returned per content search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	AuditDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sitesearch",
			Name:      "audit_dropped_total",
			Help:      "Audit events that could not be persisted",
		},
	)
)

var llmMetricsRegistered bool

// RegisterLLMMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterLLMMetrics() {
	if llmMetricsRegistered {
		return
	}
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(LLMErrorsTotal)
	prometheus.MustRegister(PipelineDegradationsTotal)
	prometheus.MustRegister(SearchResultsCount)
	prometheus.MustRegister(AuditDroppedTotal)
	llmMetricsRegistered = true
}
