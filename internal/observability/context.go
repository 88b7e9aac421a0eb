package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	jobIDKey     contextKey = "job_id"
	databaseKey  contextKey = "database"
	entrezIDKey  contextKey = "entrez_id"
	accessionKey contextKey = "srx_accession"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithJob adds job ID and source database to the context.
func WithJob(ctx context.Context, jobID, database string) context.Context {
	ctx = context.WithValue(ctx, jobIDKey, jobID)
	ctx = context.WithValue(ctx, databaseKey, database)
	return ctx
}

// JobFromContext retrieves job ID and source database from context.
// Returns empty strings if not present.
func JobFromContext(ctx context.Context) (jobID, database string) {
	if v := ctx.Value(jobIDKey); v != nil {
		if id, ok := v.(string); ok {
			jobID = id
		}
	}
	if v := ctx.Value(databaseKey); v != nil {
		if db, ok := v.(string); ok {
			database = db
		}
	}
	return jobID, database
}

// WithAccession adds Entrez ID and experiment accession to the context.
func WithAccession(ctx context.Context, entrezID int64, accession string) context.Context {
	ctx = context.WithValue(ctx, entrezIDKey, entrezID)
	ctx = context.WithValue(ctx, accessionKey, accession)
	return ctx
}

// AccessionFromContext retrieves Entrez ID and experiment accession from context.
// Returns zero values if not present.
func AccessionFromContext(ctx context.Context) (entrezID int64, accession string) {
	if v := ctx.Value(entrezIDKey); v != nil {
		if id, ok := v.(int64); ok {
			entrezID = id
		}
	}
	if v := ctx.Value(accessionKey); v != nil {
		if acc, ok := v.(string); ok {
			accession = acc
		}
	}
	return entrezID, accession
}

// ExtractionContext contains all the context data for one experiment extraction.
type ExtractionContext struct {
	RequestID    string
	JobID        string
	Database     string
	EntrezID     int64
	SRXAccession string
}

// WithExtractionContextFull adds all extraction context to the context.
func WithExtractionContextFull(ctx context.Context, ec ExtractionContext) context.Context {
	if ec.RequestID != "" {
		ctx = WithRequestID(ctx, ec.RequestID)
	}
	if ec.JobID != "" || ec.Database != "" {
		ctx = WithJob(ctx, ec.JobID, ec.Database)
	}
	if ec.EntrezID != 0 || ec.SRXAccession != "" {
		ctx = WithAccession(ctx, ec.EntrezID, ec.SRXAccession)
	}
	return ctx
}

// ExtractionContextFromContext extracts all extraction context from the context.
func ExtractionContextFromContext(ctx context.Context) ExtractionContext {
	jobID, database := JobFromContext(ctx)
	entrezID, accession := AccessionFromContext(ctx)

	return ExtractionContext{
		RequestID:    RequestIDFromContext(ctx),
		JobID:        jobID,
		Database:     database,
		EntrezID:     entrezID,
		SRXAccession: accession,
	}
}
