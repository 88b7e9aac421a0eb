package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobFlags carries per-job overrides for the pipeline gating flags,
// accepted at submission and applied when the job is processed. A nil field
// leaves the configured value in place. Flags are runtime options, not
// persisted columns.
type JobFlags struct {
	UseDatabase       *bool
	NoSRR             *bool
	ReprocessExisting *bool
}

// ExtractionJob is one submitted batch of Entrez identifiers tracked by the
// HTTP API, persisted in extraction_jobs.
type ExtractionJob struct {
	// ID is the primary key for this job.
	ID uuid.UUID

	// Database is the Entrez namespace every identifier in the batch belongs to.
	Database Database

	// Query is the Entrez search expression for dataset-search jobs; empty
	// for jobs submitted with explicit identifiers.
	Query string

	// Flags holds the gating overrides for this job.
	Flags JobFlags

	// Status is the current lifecycle state of the batch.
	Status JobStatus

	// SubmittedCount is the number of identifiers accepted into the batch.
	SubmittedCount int

	// CreatedAt records when the job was accepted.
	CreatedAt time.Time

	// UpdatedAt is maintained by a database trigger.
	UpdatedAt time.Time

	// CompletedAt is set once the job reaches a terminal status.
	CompletedAt *time.Time

	// Items holds the per-identifier progress rows when loaded.
	Items []JobItem
}

// NewExtractionJob creates a pending job for a batch of identifiers.
func NewExtractionJob(db Database, entrezIDs []int64) *ExtractionJob {
	job := &ExtractionJob{
		ID:             uuid.New(),
		Database:       db,
		Status:         JobStatusPending,
		SubmittedCount: len(entrezIDs),
		CreatedAt:      time.Now().UTC(),
	}
	job.Items = make([]JobItem, 0, len(entrezIDs))
	for _, id := range entrezIDs {
		job.Items = append(job.Items, JobItem{
			JobID:    job.ID,
			EntrezID: id,
			Status:   ItemStatusPending,
		})
	}
	return job
}

// JobItem is the progress row for one identifier within a batch, persisted
// in extraction_job_items.
type JobItem struct {
	// JobID references the owning job.
	JobID uuid.UUID

	// EntrezID is the identifier this row tracks.
	EntrezID int64

	// Status is the current state of this identifier's workflow run.
	Status ItemStatus

	// SRXAccession is filled in once the workflow resolves it.
	SRXAccession string

	// RunCount is the number of run accessions resolved for the experiment.
	RunCount int

	// Error holds the failure message for failed items.
	Error string

	// UpdatedAt is maintained by a database trigger.
	UpdatedAt time.Time
}

// Finalize derives the job-level terminal status from its items: failed when
// nothing succeeded, partial when some items failed or were skipped, and
// completed otherwise.
func (j *ExtractionJob) Finalize(now time.Time) {
	var completed, failed int
	for _, it := range j.Items {
		switch it.Status {
		case ItemStatusCompleted, ItemStatusSkipped:
			completed++
		case ItemStatusFailed:
			failed++
		}
	}
	switch {
	case completed == 0 && failed > 0:
		j.Status = JobStatusFailed
	case failed > 0:
		j.Status = JobStatusPartial
	default:
		j.Status = JobStatusCompleted
	}
	t := now.UTC()
	j.CompletedAt = &t
}
