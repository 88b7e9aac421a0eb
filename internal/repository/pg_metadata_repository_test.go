package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// Helper to create a fully populated metadata record for testing.
func newTestRecord() *domain.SRXRecord {
	now := time.Now().UTC()
	ontology := "UBERON:0002371"
	return &domain.SRXRecord{
		Database:             domain.DatabaseSRA,
		EntrezID:             18060880,
		SRXAccession:         "SRX13201194",
		IsIllumina:           domain.TriStateYes,
		IsSingleCell:         domain.TriStateYes,
		IsPairedEnd:          domain.TriStateYes,
		LibPrep:              domain.LibPrep10xGenomics,
		Tech10x:              domain.Tech10x3PrimeGEX,
		CellPrep:             domain.CellPrepSingleCell,
		Organism:             domain.OrganismHuman,
		Tissue:               "bone marrow",
		TissueOntologyTermID: &ontology,
		Disease:              "acute myeloid leukemia",
		Perturbation:         "none",
		CellLine:             "none",
		Notes:                domain.ProvenanceNote,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestNewPgMetadataRepository(t *testing.T) {
	t.Run("creates repository with nil db", func(t *testing.T) {
		repo := NewPgMetadataRepository(nil)
		assert.NotNil(t, repo)
		assert.Nil(t, repo.db)
	})

	t.Run("creates repository with mock db", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestPgMetadataRepository_UpsertExperiment(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts record successfully", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		record := newTestRecord()
		now := time.Now().UTC()

		mock.ExpectQuery("INSERT INTO srx_metadata").
			WithArgs(
				record.Database, record.EntrezID, pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).
				AddRow(now, now))

		result, err := repo.UpsertExperiment(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, now, result.CreatedAt)
		assert.Equal(t, now, result.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for nil record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		result, err := repo.UpsertExperiment(ctx, nil)

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "record", validationErr.Field)
	})

	t.Run("returns validation error for unknown database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		record := newTestRecord()
		record.Database = domain.Database("refseq")

		result, err := repo.UpsertExperiment(ctx, record)

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "database", validationErr.Field)
	})

	t.Run("returns validation error for non-positive entrez id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		record := newTestRecord()
		record.EntrezID = 0

		result, err := repo.UpsertExperiment(ctx, record)

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "entrez_id", validationErr.Field)
	})
}

func TestPgMetadataRepository_UpsertRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts new run links", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		runs := []string{"SRR17048638", "SRR17048639", "SRR17048640"}

		mock.ExpectExec("INSERT INTO srx_srr").
			WithArgs("SRX13201194", runs).
			WillReturnResult(pgxmock.NewResult("INSERT", 3))

		inserted, err := repo.UpsertRuns(ctx, "SRX13201194", runs)
		require.NoError(t, err)
		assert.Equal(t, 3, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("counts only newly inserted links when pairs already exist", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		runs := []string{"SRR17048638", "SRR17048639", "SRR17048640"}

		mock.ExpectExec("INSERT INTO srx_srr").
			WithArgs("SRX13201194", runs).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		inserted, err := repo.UpsertRuns(ctx, "SRX13201194", runs)
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns zero for empty input without touching the database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)

		inserted, err := repo.UpsertRuns(ctx, "SRX13201194", nil)
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty accession", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		_, err = repo.UpsertRuns(ctx, "", []string{"SRR17048638"})

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "srx_accession", validationErr.Field)
	})
}

func TestPgMetadataRepository_GetByEntrezID(t *testing.T) {
	ctx := context.Background()

	t.Run("returns record when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		record := newTestRecord()

		rows := pgxmock.NewRows([]string{
			"database", "entrez_id", "srx_accession",
			"is_illumina", "is_single_cell", "is_paired_end",
			"lib_prep", "tech_10x", "cell_prep",
			"organism", "tissue", "tissue_ontology_term_id",
			"disease", "perturbation", "cell_line",
			"czi_collection_id", "czi_collection_name", "notes",
			"created_at", "updated_at",
		}).AddRow(
			record.Database, record.EntrezID, record.SRXAccession,
			record.IsIllumina, record.IsSingleCell, record.IsPairedEnd,
			record.LibPrep, record.Tech10x, record.CellPrep,
			record.Organism, record.Tissue, record.TissueOntologyTermID,
			record.Disease, record.Perturbation, record.CellLine,
			record.CZICollectionID, record.CZICollectionName, record.Notes,
			record.CreatedAt, record.UpdatedAt,
		)

		mock.ExpectQuery("SELECT .* FROM srx_metadata WHERE database = \\$1 AND entrez_id = \\$2").
			WithArgs(record.Database, record.EntrezID).
			WillReturnRows(rows)

		result, err := repo.GetByEntrezID(ctx, record.Database, record.EntrezID)
		require.NoError(t, err)
		assert.Equal(t, record.SRXAccession, result.SRXAccession)
		assert.Equal(t, domain.TriStateYes, result.IsIllumina)
		assert.Equal(t, domain.LibPrep10xGenomics, result.LibPrep)
		assert.Equal(t, domain.OrganismHuman, result.Organism)
		require.NotNil(t, result.TissueOntologyTermID)
		assert.Equal(t, "UBERON:0002371", *result.TissueOntologyTermID)
		assert.Nil(t, result.CZICollectionID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)

		mock.ExpectQuery("SELECT .* FROM srx_metadata WHERE database = \\$1 AND entrez_id = \\$2").
			WithArgs(domain.DatabaseSRA, int64(99999999)).
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.GetByEntrezID(ctx, domain.DatabaseSRA, 99999999)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for unknown database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		result, err := repo.GetByEntrezID(ctx, domain.Database("refseq"), 18060880)

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "database", validationErr.Field)
	})
}

func TestPgMetadataRepository_GetByAccession(t *testing.T) {
	ctx := context.Background()

	t.Run("returns record when found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		record := newTestRecord()

		rows := pgxmock.NewRows([]string{
			"database", "entrez_id", "srx_accession",
			"is_illumina", "is_single_cell", "is_paired_end",
			"lib_prep", "tech_10x", "cell_prep",
			"organism", "tissue", "tissue_ontology_term_id",
			"disease", "perturbation", "cell_line",
			"czi_collection_id", "czi_collection_name", "notes",
			"created_at", "updated_at",
		}).AddRow(
			record.Database, record.EntrezID, record.SRXAccession,
			record.IsIllumina, record.IsSingleCell, record.IsPairedEnd,
			record.LibPrep, record.Tech10x, record.CellPrep,
			record.Organism, record.Tissue, record.TissueOntologyTermID,
			record.Disease, record.Perturbation, record.CellLine,
			record.CZICollectionID, record.CZICollectionName, record.Notes,
			record.CreatedAt, record.UpdatedAt,
		)

		mock.ExpectQuery("SELECT .* FROM srx_metadata WHERE srx_accession = \\$1 ORDER BY updated_at DESC LIMIT 1").
			WithArgs(record.SRXAccession).
			WillReturnRows(rows)

		result, err := repo.GetByAccession(ctx, record.SRXAccession)
		require.NoError(t, err)
		assert.Equal(t, record.EntrezID, result.EntrezID)
		assert.Equal(t, record.Database, result.Database)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found error when not exists", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)

		mock.ExpectQuery("SELECT .* FROM srx_metadata WHERE srx_accession = \\$1").
			WithArgs("SRX99999999").
			WillReturnError(pgx.ErrNoRows)

		result, err := repo.GetByAccession(ctx, "SRX99999999")
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty accession", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		result, err := repo.GetByAccession(ctx, "")

		assert.Nil(t, result)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "srx_accession", validationErr.Field)
	})
}

func TestPgMetadataRepository_ListRuns(t *testing.T) {
	ctx := context.Background()

	t.Run("returns runs ordered by accession", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		now := time.Now().UTC()

		rows := pgxmock.NewRows([]string{"srx_accession", "srr_accession", "created_at", "updated_at"}).
			AddRow("SRX13201194", "SRR17048638", now, now).
			AddRow("SRX13201194", "SRR17048639", now, now)

		mock.ExpectQuery("SELECT srx_accession, srr_accession, created_at, updated_at FROM srx_srr").
			WithArgs("SRX13201194").
			WillReturnRows(rows)

		runs, err := repo.ListRuns(ctx, "SRX13201194")
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "SRR17048638", runs[0].SRRAccession)
		assert.Equal(t, "SRR17048639", runs[1].SRRAccession)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty result when no links exist", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)

		mock.ExpectQuery("SELECT srx_accession, srr_accession, created_at, updated_at FROM srx_srr").
			WithArgs("SRX99999999").
			WillReturnRows(pgxmock.NewRows([]string{"srx_accession", "srr_accession", "created_at", "updated_at"}))

		runs, err := repo.ListRuns(ctx, "SRX99999999")
		require.NoError(t, err)
		assert.Len(t, runs, 0)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for empty accession", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		runs, err := repo.ListRuns(ctx, "")

		assert.Nil(t, runs)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "srx_accession", validationErr.Field)
	})
}

func TestPgMetadataRepository_ProcessedEntrezIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("maps already processed identifiers", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		ids := []int64{18060880, 25600213, 27600000}

		rows := pgxmock.NewRows([]string{"entrez_id"}).
			AddRow(int64(18060880)).
			AddRow(int64(25600213))

		mock.ExpectQuery("SELECT entrez_id FROM srx_metadata WHERE database = \\$1 AND entrez_id = ANY\\(\\$2\\)").
			WithArgs(domain.DatabaseSRA, ids).
			WillReturnRows(rows)

		processed, err := repo.ProcessedEntrezIDs(ctx, domain.DatabaseSRA, ids)
		require.NoError(t, err)
		assert.True(t, processed[18060880])
		assert.True(t, processed[25600213])
		assert.False(t, processed[27600000])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty map for empty input without touching the database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)

		processed, err := repo.ProcessedEntrezIDs(ctx, domain.DatabaseSRA, nil)
		require.NoError(t, err)
		assert.Empty(t, processed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns validation error for unknown database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgMetadataRepository(mock)
		processed, err := repo.ProcessedEntrezIDs(ctx, domain.Database("refseq"), []int64{1})

		assert.Nil(t, processed)
		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "database", validationErr.Field)
	})
}

func TestNullString(t *testing.T) {
	t.Run("returns nil for empty string", func(t *testing.T) {
		assert.Nil(t, nullString(""))
	})

	t.Run("returns pointer for non-empty string", func(t *testing.T) {
		result := nullString("SRX13201194")
		require.NotNil(t, result)
		assert.Equal(t, "SRX13201194", *result)
	})
}
