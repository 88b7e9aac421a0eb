package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the SRA metadata service.
// Metrics are organized by subsystem: extractions, workflow steps, run
// resolution, persistence, jobs, Entrez, and LLM operations. All counters and
// histograms are registered via promauto for automatic registration with the
// default Prometheus registry.
type Metrics struct {
	// ExtractionsStarted counts the total number of per-experiment extractions initiated.
	ExtractionsStarted prometheus.Counter

	// ExtractionsCompleted counts extractions that finished successfully.
	ExtractionsCompleted prometheus.Counter

	// ExtractionsFailed counts extractions that ended in failure.
	ExtractionsFailed prometheus.Counter

	// ExtractionsSkipped counts identifiers skipped because metadata already exists.
	ExtractionsSkipped prometheus.Counter

	// ExtractionDuration observes the end-to-end duration of extractions in seconds.
	ExtractionDuration prometheus.Histogram

	// ActiveWorkers tracks the number of extraction workers currently running.
	ActiveWorkers prometheus.Gauge

	// StepsExecuted counts workflow steps executed, labeled by step name.
	StepsExecuted *prometheus.CounterVec

	// StepDuration observes workflow step duration in seconds, labeled by step name.
	StepDuration *prometheus.HistogramVec

	// RouteDecisions counts completeness router decisions, labeled by level and route.
	RouteDecisions *prometheus.CounterVec

	// Escalations counts level escalations from primary to secondary.
	Escalations prometheus.Counter

	// DecodeRetries counts structured-output decode retries, labeled by level.
	DecodeRetries *prometheus.CounterVec

	// ExtractionAttempts observes the attempts used per level before advancing.
	ExtractionAttempts *prometheus.HistogramVec

	// RunsResolved counts the total number of run accessions resolved.
	RunsResolved prometheus.Counter

	// RunsPerExperiment observes the distribution of run counts per experiment.
	RunsPerExperiment prometheus.Histogram

	// RecordsUpserted counts rows written, labeled by table.
	RecordsUpserted *prometheus.CounterVec

	// UpsertConflicts counts benign unique-violation conflicts, labeled by table.
	UpsertConflicts *prometheus.CounterVec

	// JobsSubmitted counts extraction jobs accepted for processing.
	JobsSubmitted prometheus.Counter

	// JobsCompleted counts extraction jobs finished, labeled by terminal status.
	JobsCompleted *prometheus.CounterVec

	// EntrezRequestsTotal counts E-utilities requests, labeled by endpoint and database.
	EntrezRequestsTotal *prometheus.CounterVec

	// EntrezRequestsFailed counts failed E-utilities requests, labeled by endpoint, database, and error type.
	EntrezRequestsFailed *prometheus.CounterVec

	// EntrezRequestDuration observes E-utilities request duration in seconds.
	EntrezRequestDuration *prometheus.HistogramVec

	// EntrezRateLimited counts rate-limited responses from NCBI.
	EntrezRateLimited prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds, labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Extractions
		ExtractionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_started_total",
			Help:      "Total number of experiment extractions started",
		}),
		ExtractionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_completed_total",
			Help:      "Total number of experiment extractions completed successfully",
		}),
		ExtractionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_failed_total",
			Help:      "Total number of experiment extractions that failed",
		}),
		ExtractionsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_skipped_total",
			Help:      "Total number of identifiers skipped (already processed)",
		}),
		ExtractionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Duration of experiment extractions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),
		ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Number of extraction workers currently running",
		}),

		// Workflow steps
		StepsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_executed_total",
			Help:      "Total number of workflow steps executed by step",
		}, []string{"step"}),
		StepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of workflow steps in seconds by step",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"step"}),
		RouteDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Total number of completeness router decisions by level and route",
		}, []string{"level", "route"}),
		Escalations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of level escalations from primary to secondary",
		}),
		DecodeRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_retries_total",
			Help:      "Total number of structured-output decode retries by level",
		}, []string{"level"}),
		ExtractionAttempts: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_attempts",
			Help:      "Extraction attempts used per level before advancing",
			Buckets:   []float64{1, 2, 3},
		}, []string{"level"}),

		// Run resolution
		RunsResolved: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_resolved_total",
			Help:      "Total number of run accessions resolved",
		}),
		RunsPerExperiment: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "runs_per_experiment",
			Help:      "Number of run accessions resolved per experiment",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),

		// Persistence
		RecordsUpserted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_upserted_total",
			Help:      "Total number of rows upserted by table",
		}, []string{"table"}),
		UpsertConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_conflicts_total",
			Help:      "Total number of benign unique-violation conflicts by table",
		}, []string{"table"}),

		// Jobs
		JobsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_submitted_total",
			Help:      "Total number of extraction jobs submitted",
		}),
		JobsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Total number of extraction jobs finished by terminal status",
		}, []string{"status"}),

		// Entrez
		EntrezRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entrez_requests_total",
			Help:      "Total number of E-utilities requests",
		}, []string{"endpoint", "database"}),
		EntrezRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entrez_requests_failed_total",
			Help:      "Total number of failed E-utilities requests",
		}, []string{"endpoint", "database", "error_type"}),
		EntrezRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entrez_request_duration_seconds",
			Help:      "Duration of E-utilities requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "database"}),
		EntrezRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entrez_rate_limited_total",
			Help:      "Total number of rate limit responses from NCBI",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by operation",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed LLM requests by operation",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used by LLM operations",
		}, []string{"operation", "model", "token_type"}),
	}
}

// RecordExtractionStarted records that an extraction has started.
func (m *Metrics) RecordExtractionStarted() {
	m.ExtractionsStarted.Inc()
}

// RecordExtractionCompleted records that an extraction has completed.
func (m *Metrics) RecordExtractionCompleted(durationSeconds float64) {
	m.ExtractionsCompleted.Inc()
	m.ExtractionDuration.Observe(durationSeconds)
}

// RecordExtractionFailed records that an extraction has failed.
func (m *Metrics) RecordExtractionFailed(durationSeconds float64) {
	m.ExtractionsFailed.Inc()
	m.ExtractionDuration.Observe(durationSeconds)
}

// RecordExtractionSkipped records an identifier skipped as already processed.
func (m *Metrics) RecordExtractionSkipped() {
	m.ExtractionsSkipped.Inc()
}

// RecordWorkerStarted marks one extraction worker as running.
func (m *Metrics) RecordWorkerStarted() {
	m.ActiveWorkers.Inc()
}

// RecordWorkerFinished marks one extraction worker as done.
func (m *Metrics) RecordWorkerFinished() {
	m.ActiveWorkers.Dec()
}

// RecordStep records an executed workflow step.
func (m *Metrics) RecordStep(step string, durationSeconds float64) {
	m.StepsExecuted.WithLabelValues(step).Inc()
	m.StepDuration.WithLabelValues(step).Observe(durationSeconds)
}

// RecordRouteDecision records a completeness router decision.
func (m *Metrics) RecordRouteDecision(level, route string) {
	m.RouteDecisions.WithLabelValues(level, route).Inc()
}

// RecordEscalation records a level escalation.
func (m *Metrics) RecordEscalation() {
	m.Escalations.Inc()
}

// RecordDecodeRetry records a structured-output decode retry.
func (m *Metrics) RecordDecodeRetry(level string) {
	m.DecodeRetries.WithLabelValues(level).Inc()
}

// RecordExtractionAttempts records the attempts used at a level.
func (m *Metrics) RecordExtractionAttempts(level string, attempts int) {
	m.ExtractionAttempts.WithLabelValues(level).Observe(float64(attempts))
}

// RecordRunsResolved records run accessions resolved for an experiment.
func (m *Metrics) RecordRunsResolved(count int) {
	m.RunsResolved.Add(float64(count))
	m.RunsPerExperiment.Observe(float64(count))
}

// RecordUpsert records a row written to a table.
func (m *Metrics) RecordUpsert(table string) {
	m.RecordsUpserted.WithLabelValues(table).Inc()
}

// RecordUpserts records multiple rows written to a table in a single call.
func (m *Metrics) RecordUpserts(table string, count int) {
	m.RecordsUpserted.WithLabelValues(table).Add(float64(count))
}

// RecordUpsertConflict records a benign unique-violation conflict.
func (m *Metrics) RecordUpsertConflict(table string) {
	m.UpsertConflicts.WithLabelValues(table).Inc()
}

// RecordJobSubmitted records an accepted extraction job.
func (m *Metrics) RecordJobSubmitted() {
	m.JobsSubmitted.Inc()
}

// RecordJobCompleted records a finished extraction job.
func (m *Metrics) RecordJobCompleted(status string) {
	m.JobsCompleted.WithLabelValues(status).Inc()
}

// RecordEntrezRequest records an E-utilities request.
func (m *Metrics) RecordEntrezRequest(endpoint, database string, durationSeconds float64) {
	m.EntrezRequestsTotal.WithLabelValues(endpoint, database).Inc()
	m.EntrezRequestDuration.WithLabelValues(endpoint, database).Observe(durationSeconds)
}

// RecordEntrezRequestFailed records a failed E-utilities request.
func (m *Metrics) RecordEntrezRequestFailed(endpoint, database, errorType string) {
	m.EntrezRequestsFailed.WithLabelValues(endpoint, database, errorType).Inc()
}

// RecordEntrezRateLimited records a rate limit response from NCBI.
func (m *Metrics) RecordEntrezRateLimited() {
	m.EntrezRateLimited.Inc()
}

// RecordLLMRequest records an LLM request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
	m.LLMTokensUsed.WithLabelValues(operation, model, "input").Add(float64(inputTokens))
	m.LLMTokensUsed.WithLabelValues(operation, model, "output").Add(float64(outputTokens))
}

// RecordLLMRequestFailed records a failed LLM request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}
