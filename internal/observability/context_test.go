package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithRequestID(ctx, "req-123")

		result := RequestIDFromContext(ctx)
		assert.Equal(t, "req-123", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := RequestIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestJobContext(t *testing.T) {
	t.Run("stores and retrieves job ID and database", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithJob(ctx, "job-456", "sra")

		jobID, database := JobFromContext(ctx)
		assert.Equal(t, "job-456", jobID)
		assert.Equal(t, "sra", database)
	})

	t.Run("returns empty strings when not set", func(t *testing.T) {
		ctx := context.Background()
		jobID, database := JobFromContext(ctx)
		assert.Equal(t, "", jobID)
		assert.Equal(t, "", database)
	})

	t.Run("handles partial values", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithJob(ctx, "job-only", "")

		jobID, database := JobFromContext(ctx)
		assert.Equal(t, "job-only", jobID)
		assert.Equal(t, "", database)
	})
}

func TestAccessionContext(t *testing.T) {
	t.Run("stores and retrieves Entrez ID and accession", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithAccession(ctx, 18060880, "SRX13201194")

		entrezID, accession := AccessionFromContext(ctx)
		assert.Equal(t, int64(18060880), entrezID)
		assert.Equal(t, "SRX13201194", accession)
	})

	t.Run("returns zero values when not set", func(t *testing.T) {
		ctx := context.Background()
		entrezID, accession := AccessionFromContext(ctx)
		assert.Equal(t, int64(0), entrezID)
		assert.Equal(t, "", accession)
	})
}

func TestExtractionContextFull(t *testing.T) {
	t.Run("stores and retrieves full extraction context", func(t *testing.T) {
		ctx := context.Background()
		ec := ExtractionContext{
			RequestID:    "req-123",
			JobID:        "job-456",
			Database:     "sra",
			EntrezID:     18060880,
			SRXAccession: "SRX13201194",
		}

		ctx = WithExtractionContextFull(ctx, ec)
		result := ExtractionContextFromContext(ctx)

		assert.Equal(t, ec.RequestID, result.RequestID)
		assert.Equal(t, ec.JobID, result.JobID)
		assert.Equal(t, ec.Database, result.Database)
		assert.Equal(t, ec.EntrezID, result.EntrezID)
		assert.Equal(t, ec.SRXAccession, result.SRXAccession)
	})

	t.Run("handles partial context", func(t *testing.T) {
		ctx := context.Background()
		ec := ExtractionContext{
			RequestID: "req-only",
		}

		ctx = WithExtractionContextFull(ctx, ec)
		result := ExtractionContextFromContext(ctx)

		assert.Equal(t, "req-only", result.RequestID)
		assert.Equal(t, "", result.JobID)
		assert.Equal(t, int64(0), result.EntrezID)
	})

	t.Run("returns empty context when nothing set", func(t *testing.T) {
		ctx := context.Background()
		result := ExtractionContextFromContext(ctx)

		assert.Equal(t, ExtractionContext{}, result)
	})
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()

	// Chain multiple context additions
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithJob(ctx, "job-1", "gds")
	ctx = WithAccession(ctx, 200278145, "SRX27405631")

	// All values should be retrievable
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))

	jobID, database := JobFromContext(ctx)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "gds", database)

	entrezID, accession := AccessionFromContext(ctx)
	assert.Equal(t, int64(200278145), entrezID)
	assert.Equal(t, "SRX27405631", accession)
}

func TestContextOverwrite(t *testing.T) {
	ctx := context.Background()

	// Set initial values
	ctx = WithRequestID(ctx, "req-1")

	// Overwrite with new values
	ctx = WithRequestID(ctx, "req-2")

	// Should have new value
	assert.Equal(t, "req-2", RequestIDFromContext(ctx))
}
