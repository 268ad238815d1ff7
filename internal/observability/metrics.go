package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric series, renamed from the teacher's agent/LLM-oriented series
// (jeeves_pipeline_executions_total, jeeves_agent_*, jeeves_llm_*) to the
// gateway domain this runtime actually has: pipeline executions, DIMSE
// associations, and JMIX package builds. The LLM/agent-specific series have
// no referent here and are dropped (see DESIGN.md).
var (
	pipelineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_pipeline_executions_total",
			Help: "Total number of pipeline executions",
		},
		[]string{"pipeline", "status"}, // status: success, error
	)

	pipelineDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harmony_pipeline_duration_seconds",
			Help:    "Pipeline execution duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"pipeline"},
	)

	dimseAssociationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_dimse_associations_total",
			Help: "Total DIMSE associations accepted or rejected",
		},
		[]string{"endpoint", "outcome"}, // outcome: accepted, rejected
	)

	dimseCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_dimse_commands_total",
			Help: "Total DIMSE commands processed by the SCP",
		},
		[]string{"command", "status"}, // status: success, error
	)

	jmixPackagesBuiltTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_jmix_packages_built_total",
			Help: "Total JMIX packages built and indexed",
		},
		[]string{"status"},
	)

	grpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harmony_grpc_requests_total",
			Help: "Total gRPC management requests",
		},
		[]string{"method", "status"},
	)
)

// RecordPipelineExecution records pipeline execution metrics.
func RecordPipelineExecution(pipeline string, status string, durationMS int64) {
	pipelineExecutionsTotal.WithLabelValues(pipeline, status).Inc()
	pipelineDurationSeconds.WithLabelValues(pipeline).Observe(float64(durationMS) / 1000.0)
}

// RecordDimseAssociation records an accepted or rejected DIMSE association.
func RecordDimseAssociation(endpoint string, outcome string) {
	dimseAssociationsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordDimseCommand records a processed DIMSE command outcome.
func RecordDimseCommand(command string, status string) {
	dimseCommandsTotal.WithLabelValues(command, status).Inc()
}

// RecordJmixBuild records a JMIX package build outcome.
func RecordJmixBuild(status string) {
	jmixPackagesBuiltTotal.WithLabelValues(status).Inc()
}

// RecordGRPCRequest records a gRPC management request.
func RecordGRPCRequest(method string, status string) {
	grpcRequestsTotal.WithLabelValues(method, status).Inc()
}
