package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// Compile-time check that PgJobRepository implements JobRepository.
var _ JobRepository = (*PgJobRepository)(nil)

// PgJobRepository is a PostgreSQL implementation of JobRepository.
type PgJobRepository struct {
	db DBTX
}

// NewPgJobRepository creates a new PostgreSQL-backed job repository.
func NewPgJobRepository(db DBTX) *PgJobRepository {
	return &PgJobRepository{db: db}
}

// Create persists a job and all of its items in a single batch round trip.
func (r *PgJobRepository) Create(ctx context.Context, job *domain.ExtractionJob) error {
	if job == nil {
		return domain.NewValidationError("job", "cannot be nil")
	}
	if job.ID == uuid.Nil {
		return domain.NewValidationError("id", "cannot be empty")
	}
	if !job.Database.Valid() {
		return domain.NewValidationError("database", fmt.Sprintf("unknown database %q", job.Database))
	}

	insertJob := `
		INSERT INTO extraction_jobs (id, database, query, status, submitted_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertItem := `
		INSERT INTO extraction_job_items (job_id, entrez_id, status)
		VALUES ($1, $2, $3)`

	batch := &pgx.Batch{}
	batch.Queue(insertJob, job.ID, job.Database, nullString(job.Query), job.Status, job.SubmittedCount, job.CreatedAt)
	for _, item := range job.Items {
		batch.Queue(insertItem, item.JobID, item.EntrezID, item.Status)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			if isPgUniqueViolation(err) {
				return domain.NewAlreadyExistsError("extraction job", job.ID.String())
			}
			return fmt.Errorf("failed to create extraction job: %w", err)
		}
	}

	return nil
}

// GetByID retrieves a job together with its items, ordered by Entrez ID.
func (r *PgJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractionJob, error) {
	if id == uuid.Nil {
		return nil, domain.NewValidationError("id", "cannot be empty")
	}

	jobQuery := `
		SELECT id, database, COALESCE(query, ''), status, submitted_count,
			created_at, updated_at, completed_at
		FROM extraction_jobs
		WHERE id = $1`

	var job domain.ExtractionJob
	err := r.db.QueryRow(ctx, jobQuery, id).Scan(
		&job.ID,
		&job.Database,
		&job.Query,
		&job.Status,
		&job.SubmittedCount,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("extraction job", id.String())
		}
		return nil, fmt.Errorf("failed to get extraction job: %w", err)
	}

	itemQuery := `
		SELECT job_id, entrez_id, status, COALESCE(srx_accession, ''),
			run_count, COALESCE(error, ''), updated_at
		FROM extraction_job_items
		WHERE job_id = $1
		ORDER BY entrez_id`

	rows, err := r.db.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list job items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.JobItem
		err := rows.Scan(
			&item.JobID,
			&item.EntrezID,
			&item.Status,
			&item.SRXAccession,
			&item.RunCount,
			&item.Error,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job item: %w", err)
		}
		job.Items = append(job.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate job items: %w", err)
	}

	return &job, nil
}

// MarkRunning transitions a pending job to running. The status guard in the
// WHERE clause makes the transition atomic without an explicit transaction.
func (r *PgJobRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domain.NewValidationError("id", "cannot be empty")
	}

	query := `
		UPDATE extraction_jobs
		SET status = $2
		WHERE id = $1 AND status = $3`

	tag, err := r.db.Exec(ctx, query, id, domain.JobStatusRunning, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark extraction job running: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("pending extraction job", id.String())
	}

	return nil
}

// UpdateItem records the outcome of one item. The updated_at column is
// maintained by a trigger.
func (r *PgJobRepository) UpdateItem(ctx context.Context, item *domain.JobItem) error {
	if item == nil {
		return domain.NewValidationError("item", "cannot be nil")
	}
	if item.JobID == uuid.Nil {
		return domain.NewValidationError("job_id", "cannot be empty")
	}

	query := `
		UPDATE extraction_job_items
		SET status = $3, srx_accession = $4, run_count = $5, error = $6
		WHERE job_id = $1 AND entrez_id = $2`

	tag, err := r.db.Exec(ctx, query,
		item.JobID,
		item.EntrezID,
		item.Status,
		nullString(item.SRXAccession),
		item.RunCount,
		nullString(item.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to update job item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("job item", fmt.Sprintf("%s:%d", item.JobID, item.EntrezID))
	}

	return nil
}

// Finalize records the job's terminal status and completion time.
func (r *PgJobRepository) Finalize(ctx context.Context, job *domain.ExtractionJob) error {
	if job == nil {
		return domain.NewValidationError("job", "cannot be nil")
	}
	if !job.Status.IsTerminal() {
		return domain.NewValidationError("status", fmt.Sprintf("%q is not a terminal status", job.Status))
	}

	query := `
		UPDATE extraction_jobs
		SET status = $2, completed_at = $3
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, job.ID, job.Status, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to finalize extraction job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("extraction job", job.ID.String())
	}

	return nil
}
