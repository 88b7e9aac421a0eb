package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// JobRepository manages extraction job bookkeeping. A job groups a batch of
// Entrez identifiers submitted together; each identifier becomes an item
// whose status is updated as the pipeline progresses.
type JobRepository interface {
	// Create persists a new job and all of its items in a single batch.
	Create(ctx context.Context, job *domain.ExtractionJob) error

	// GetByID retrieves a job and its items. Returns domain.ErrNotFound if
	// the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractionJob, error)

	// MarkRunning transitions a pending job to running. Returns
	// domain.ErrNotFound if the job does not exist or is not pending.
	MarkRunning(ctx context.Context, id uuid.UUID) error

	// UpdateItem records the outcome of a single item. Returns
	// domain.ErrNotFound if the item does not exist.
	UpdateItem(ctx context.Context, item *domain.JobItem) error

	// Finalize records the job's terminal status and completion time.
	Finalize(ctx context.Context, job *domain.ExtractionJob) error
}
