package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// PostgreSQL error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Compile-time check that PgMetadataRepository implements MetadataRepository.
var _ MetadataRepository = (*PgMetadataRepository)(nil)

// PgMetadataRepository is a PostgreSQL implementation of MetadataRepository.
type PgMetadataRepository struct {
	db DBTX
}

// NewPgMetadataRepository creates a new PostgreSQL-backed metadata repository.
func NewPgMetadataRepository(db DBTX) *PgMetadataRepository {
	return &PgMetadataRepository{db: db}
}

// UpsertExperiment inserts or updates the metadata row for
// (database, entrez_id). On conflict every extracted column is overwritten,
// so re-running an extraction refreshes the row with the latest values.
func (r *PgMetadataRepository) UpsertExperiment(ctx context.Context, record *domain.SRXRecord) (*domain.SRXRecord, error) {
	if record == nil {
		return nil, domain.NewValidationError("record", "cannot be nil")
	}
	if !record.Database.Valid() {
		return nil, domain.NewValidationError("database", fmt.Sprintf("unknown database %q", record.Database))
	}
	if record.EntrezID <= 0 {
		return nil, domain.NewValidationError("entrez_id", "must be positive")
	}

	query := `
		INSERT INTO srx_metadata (
			database, entrez_id, srx_accession,
			is_illumina, is_single_cell, is_paired_end,
			lib_prep, tech_10x, cell_prep,
			organism, tissue, tissue_ontology_term_id,
			disease, perturbation, cell_line,
			czi_collection_id, czi_collection_name, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (database, entrez_id) DO UPDATE SET
			srx_accession = EXCLUDED.srx_accession,
			is_illumina = EXCLUDED.is_illumina,
			is_single_cell = EXCLUDED.is_single_cell,
			is_paired_end = EXCLUDED.is_paired_end,
			lib_prep = EXCLUDED.lib_prep,
			tech_10x = EXCLUDED.tech_10x,
			cell_prep = EXCLUDED.cell_prep,
			organism = EXCLUDED.organism,
			tissue = EXCLUDED.tissue,
			tissue_ontology_term_id = EXCLUDED.tissue_ontology_term_id,
			disease = EXCLUDED.disease,
			perturbation = EXCLUDED.perturbation,
			cell_line = EXCLUDED.cell_line,
			czi_collection_id = EXCLUDED.czi_collection_id,
			czi_collection_name = EXCLUDED.czi_collection_name,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		record.Database,
		record.EntrezID,
		nullString(record.SRXAccession),
		nullString(string(record.IsIllumina)),
		nullString(string(record.IsSingleCell)),
		nullString(string(record.IsPairedEnd)),
		nullString(string(record.LibPrep)),
		nullString(string(record.Tech10x)),
		nullString(string(record.CellPrep)),
		nullString(string(record.Organism)),
		nullString(record.Tissue),
		record.TissueOntologyTermID,
		nullString(record.Disease),
		nullString(record.Perturbation),
		nullString(record.CellLine),
		record.CZICollectionID,
		record.CZICollectionName,
		nullString(record.Notes),
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert experiment metadata: %w", err)
	}

	return record, nil
}

// UpsertRuns links run accessions to an experiment. Pairs that already exist
// are left untouched, so replaying a resolution is harmless. Returns the
// number of newly inserted links.
func (r *PgMetadataRepository) UpsertRuns(ctx context.Context, srxAccession string, srrAccessions []string) (int, error) {
	if srxAccession == "" {
		return 0, domain.NewValidationError("srx_accession", "cannot be empty")
	}
	if len(srrAccessions) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO srx_srr (srx_accession, srr_accession)
		SELECT $1, srr FROM unnest($2::text[]) AS srr
		ON CONFLICT (srx_accession, srr_accession) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, srxAccession, srrAccessions)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert run links: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// GetByEntrezID retrieves the metadata row for (database, entrez_id).
func (r *PgMetadataRepository) GetByEntrezID(ctx context.Context, db domain.Database, entrezID int64) (*domain.SRXRecord, error) {
	if !db.Valid() {
		return nil, domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}
	if entrezID <= 0 {
		return nil, domain.NewValidationError("entrez_id", "must be positive")
	}

	query := `
		SELECT database, entrez_id, COALESCE(srx_accession, ''),
			COALESCE(is_illumina, ''), COALESCE(is_single_cell, ''), COALESCE(is_paired_end, ''),
			COALESCE(lib_prep, ''), COALESCE(tech_10x, ''), COALESCE(cell_prep, ''),
			COALESCE(organism, ''), COALESCE(tissue, ''), tissue_ontology_term_id,
			COALESCE(disease, ''), COALESCE(perturbation, ''), COALESCE(cell_line, ''),
			czi_collection_id, czi_collection_name, COALESCE(notes, ''),
			created_at, updated_at
		FROM srx_metadata
		WHERE database = $1 AND entrez_id = $2`

	record, err := scanSRXRecord(r.db.QueryRow(ctx, query, db, entrezID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("experiment metadata", fmt.Sprintf("%s:%d", db, entrezID))
		}
		return nil, fmt.Errorf("failed to get experiment metadata: %w", err)
	}

	return record, nil
}

// GetByAccession retrieves the most recently updated metadata row for an
// experiment accession. The same accession can appear under more than one
// Entrez namespace; the freshest row wins.
func (r *PgMetadataRepository) GetByAccession(ctx context.Context, srxAccession string) (*domain.SRXRecord, error) {
	if srxAccession == "" {
		return nil, domain.NewValidationError("srx_accession", "cannot be empty")
	}

	query := `
		SELECT database, entrez_id, COALESCE(srx_accession, ''),
			COALESCE(is_illumina, ''), COALESCE(is_single_cell, ''), COALESCE(is_paired_end, ''),
			COALESCE(lib_prep, ''), COALESCE(tech_10x, ''), COALESCE(cell_prep, ''),
			COALESCE(organism, ''), COALESCE(tissue, ''), tissue_ontology_term_id,
			COALESCE(disease, ''), COALESCE(perturbation, ''), COALESCE(cell_line, ''),
			czi_collection_id, czi_collection_name, COALESCE(notes, ''),
			created_at, updated_at
		FROM srx_metadata
		WHERE srx_accession = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	record, err := scanSRXRecord(r.db.QueryRow(ctx, query, srxAccession))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("experiment metadata", srxAccession)
		}
		return nil, fmt.Errorf("failed to get experiment metadata: %w", err)
	}

	return record, nil
}

// ListRuns returns all run links for an experiment accession.
func (r *PgMetadataRepository) ListRuns(ctx context.Context, srxAccession string) ([]domain.SRXRun, error) {
	if srxAccession == "" {
		return nil, domain.NewValidationError("srx_accession", "cannot be empty")
	}

	query := `
		SELECT srx_accession, srr_accession, created_at, updated_at
		FROM srx_srr
		WHERE srx_accession = $1
		ORDER BY srr_accession`

	rows, err := r.db.Query(ctx, query, srxAccession)
	if err != nil {
		return nil, fmt.Errorf("failed to list run links: %w", err)
	}
	defer rows.Close()

	var runs []domain.SRXRun
	for rows.Next() {
		var run domain.SRXRun
		if err := rows.Scan(&run.SRXAccession, &run.SRRAccession, &run.CreatedAt, &run.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run link: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run links: %w", err)
	}

	return runs, nil
}

// ProcessedEntrezIDs reports which of the given identifiers already have a
// metadata row. The result maps every already-processed identifier to true;
// absent identifiers are simply missing from the map.
func (r *PgMetadataRepository) ProcessedEntrezIDs(ctx context.Context, db domain.Database, entrezIDs []int64) (map[int64]bool, error) {
	if !db.Valid() {
		return nil, domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}

	processed := make(map[int64]bool, len(entrezIDs))
	if len(entrezIDs) == 0 {
		return processed, nil
	}

	query := `SELECT entrez_id FROM srx_metadata WHERE database = $1 AND entrez_id = ANY($2)`

	rows, err := r.db.Query(ctx, query, db, entrezIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query processed identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan processed identifier: %w", err)
		}
		processed[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processed identifiers: %w", err)
	}

	return processed, nil
}

// scanSRXRecord scans one srx_metadata row in the canonical column order.
func scanSRXRecord(row pgx.Row) (*domain.SRXRecord, error) {
	var record domain.SRXRecord
	err := row.Scan(
		&record.Database,
		&record.EntrezID,
		&record.SRXAccession,
		&record.IsIllumina,
		&record.IsSingleCell,
		&record.IsPairedEnd,
		&record.LibPrep,
		&record.Tech10x,
		&record.CellPrep,
		&record.Organism,
		&record.Tissue,
		&record.TissueOntologyTermID,
		&record.Disease,
		&record.Perturbation,
		&record.CellLine,
		&record.CZICollectionID,
		&record.CZICollectionName,
		&record.Notes,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// isPgUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// nullString converts an empty string to a nil pointer for nullable columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
