package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// Helper to create a pending extraction job for testing.
func newTestJob() *domain.ExtractionJob {
	return domain.NewExtractionJob(domain.DatabaseSRA, []int64{18060880, 25600213})
}

func TestNewPgJobRepository(t *testing.T) {
	t.Run("creates repository with nil db", func(t *testing.T) {
		repo := NewPgJobRepository(nil)
		assert.NotNil(t, repo)
		assert.Nil(t, repo.db)
	})

	t.Run("creates repository with mock db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestPgJobRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates job and items in a single batch", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		job := newTestJob()

		expectedBatch := mock.ExpectBatch()
		expectedBatch.ExpectExec("INSERT INTO extraction_jobs").
			WithArgs(job.ID, job.Database, pgxmock.AnyArg(), job.Status, job.SubmittedCount, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		for _, item := range job.Items {
			expectedBatch.ExpectExec("INSERT INTO extraction_job_items").
				WithArgs(item.JobID, item.EntrezID, item.Status).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}

		err = repo.Create(ctx, job)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns already exists error for duplicate job", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		job := newTestJob()

		pgErr := &pgconn.PgError{Code: "23505"} // Unique constraint violation
		expectedBatch := mock.ExpectBatch()
		expectedBatch.ExpectExec("INSERT INTO extraction_jobs").
			WithArgs(job.ID, job.Database, pgxmock.AnyArg(), job.Status, job.SubmittedCount, pgxmock.AnyArg()).
			WillReturnError(pgErr)

		err = repo.Create(ctx, job)
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))
	})

	t.Run("returns validation error for nil job", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		err = repo.Create(ctx, nil)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "job", validationErr.Field)
	})

	t.Run("returns validation error for unknown database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		job := newTestJob()
		job.Database = domain.Database("refseq")

		err = repo.Create(ctx, job)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "database", validationErr.Field)
	})
}

func TestPgJobRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns job with items", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		job := newTestJob()
		now := time.Now().UTC()

		jobRows := pgxmock.NewRows([]string{
			"id", "database", "query", "status", "submitted_count",
			"created_at", "updated_at", "completed_at",
		}).AddRow(
			job.ID, job.Database, "", job.Status, job.SubmittedCount,
			job.CreatedAt, now, (*time.Time)(nil),
		)

		mock.ExpectQuery("SELECT .* FROM extraction_jobs WHERE id = \\$1").
			WithArgs(job.ID).
			WillReturnRows(jobRows)

		itemRows := pgxmock.NewRows([]string{
			"job_id", "entrez_id", "status", "srx_accession", "run_count", "error", "updated_at",
		}).
			AddRow(job.ID, int64(18060880), domain.ItemStatusCompleted, "SRX13201194", 3, "", now).
			AddRow(job.ID, int64(25600213), domain.ItemStatusFailed, "", 0, "agent failed", now)

		mock.ExpectQuery("SELECT .* FROM extraction_job_items WHERE job_id = \\$1 ORDER BY entrez_id").
			WithArgs(job.ID).
			WillReturnRows(itemRows)

		result, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, result.ID)
		assert.Equal(t, domain.JobStatusPending, result.Status)
		require.Len(t, result.Items, 2)
		assert.Equal(t, "SRX13201194", result.Items[0].SRXAccession)
		assert.Equal(t, 3, result.Items[0].RunCount)
		assert.Equal(t, "agent failed", result.Items[1].Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM extraction_jobs WHERE id = \\$1").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.GetByID(ctx, id)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		result, err := repo.GetByID(ctx, uuid.Nil)

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "id", validationErr.Field)
	})
}

func TestPgJobRepository_MarkRunning(t *testing.T) {
	ctx := context.Background()

	t.Run("marks pending job running", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE extraction_jobs SET status = \\$2").
			WithArgs(id, domain.JobStatusRunning, domain.JobStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.MarkRunning(ctx, id)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when job is not pending", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		id := uuid.New()

		mock.ExpectExec("UPDATE extraction_jobs SET status = \\$2").
			WithArgs(id, domain.JobStatusRunning, domain.JobStatusPending).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.MarkRunning(ctx, id)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgJobRepository_UpdateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("updates item successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		item := &domain.JobItem{
			JobID:        uuid.New(),
			EntrezID:     18060880,
			Status:       domain.ItemStatusCompleted,
			SRXAccession: "SRX13201194",
			RunCount:     3,
		}

		mock.ExpectExec("UPDATE extraction_job_items").
			WithArgs(item.JobID, item.EntrezID, item.Status, pgxmock.AnyArg(), item.RunCount, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.UpdateItem(ctx, item)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when item doesn't exist", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		item := &domain.JobItem{
			JobID:    uuid.New(),
			EntrezID: 18060880,
			Status:   domain.ItemStatusFailed,
			Error:    "step limit exceeded",
		}

		mock.ExpectExec("UPDATE extraction_job_items").
			WithArgs(item.JobID, item.EntrezID, item.Status, pgxmock.AnyArg(), item.RunCount, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.UpdateItem(ctx, item)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for nil item", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		err = repo.UpdateItem(ctx, nil)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "item", validationErr.Field)
	})
}

func TestPgJobRepository_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("finalizes completed job", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		job := newTestJob()
		for i := range job.Items {
			job.Items[i].Status = domain.ItemStatusCompleted
		}
		job.Finalize(time.Now())

		require.Equal(t, domain.JobStatusCompleted, job.Status)

		mock.ExpectExec("UPDATE extraction_jobs SET status = \\$2, completed_at = \\$3").
			WithArgs(job.ID, job.Status, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = repo.Finalize(ctx, job)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for non-terminal status", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		job := newTestJob()
		job.Status = domain.JobStatusRunning

		err = repo.Finalize(ctx, job)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "status", validationErr.Field)
	})

	t.Run("returns not found error when job doesn't exist", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		job := newTestJob()
		job.Finalize(time.Now())

		mock.ExpectExec("UPDATE extraction_jobs SET status = \\$2, completed_at = \\$3").
			WithArgs(job.ID, job.Status, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = repo.Finalize(ctx, job)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
