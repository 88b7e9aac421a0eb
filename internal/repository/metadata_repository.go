package repository

import (
	"context"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// MetadataRepository manages persistence of extracted experiment metadata
// and experiment-to-run links.
//
// All write operations are idempotent: re-running an extraction for the same
// identifier updates the existing row rather than failing or duplicating.
type MetadataRepository interface {
	// UpsertExperiment inserts or updates the metadata row keyed on
	// (database, entrez_id). Latest values win on conflict. The returned
	// record carries the database-assigned timestamps.
	UpsertExperiment(ctx context.Context, record *domain.SRXRecord) (*domain.SRXRecord, error)

	// UpsertRuns links run accessions to an experiment accession. Pairs that
	// already exist are skipped. Returns the number of rows inserted.
	UpsertRuns(ctx context.Context, srxAccession string, srrAccessions []string) (int, error)

	// GetByEntrezID retrieves the metadata row for (database, entrez_id).
	// Returns domain.ErrNotFound if no row exists.
	GetByEntrezID(ctx context.Context, db domain.Database, entrezID int64) (*domain.SRXRecord, error)

	// GetByAccession retrieves the most recently updated metadata row for an
	// experiment accession. Returns domain.ErrNotFound if no row exists.
	GetByAccession(ctx context.Context, srxAccession string) (*domain.SRXRecord, error)

	// ListRuns returns all run links for an experiment accession, ordered by
	// run accession.
	ListRuns(ctx context.Context, srxAccession string) ([]domain.SRXRun, error)

	// ProcessedEntrezIDs reports which of the given identifiers already have
	// a metadata row in the database. Used to skip already-processed records.
	ProcessedEntrezIDs(ctx context.Context, db domain.Database, entrezIDs []int64) (map[int64]bool, error)
}
