// Package observability provides logging and metrics support for the SRA
// metadata service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for extractions, Entrez calls, and LLM operations
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("srx_accession", acc).Msg("extraction started")
//
// Add accession context to logger:
//
//	logger = observability.WithAccessionContext(logger, entrezID, accession)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("sra_metadata")
//
// Record metrics:
//
//	metrics.RecordExtractionStarted()
//	metrics.RecordRouteDecision("primary", "CONTINUE")
//	metrics.RecordRunsResolved(4)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithAccession(ctx, entrezID, accession)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	entrezID, accession := observability.AccessionFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - job_id: Extraction job identifier
//   - database: Source database (sra, gds)
//   - entrez_id: Entrez record identifier
//   - srx_accession: Experiment accession (SRX/ERX)
//   - step: Workflow step name
//   - level: Metadata level (primary, secondary)
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
