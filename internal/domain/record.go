package domain

import "time"

// ProvenanceNote is the free-text note written with every metadata row this
// service produces.
const ProvenanceNote = "Metadata obtained by sra-metadata-service"

// SRXRecord is one experiment metadata row in srx_metadata, keyed by
// (database, entrez_id). Column layout mirrors the table.
type SRXRecord struct {
	// Database is the Entrez namespace the identifier belongs to.
	Database Database

	// EntrezID is the numeric Entrez identifier within Database.
	EntrezID int64

	// SRXAccession is the resolved SRX/ERX experiment accession.
	SRXAccession string

	// Primary metadata columns.
	IsIllumina   TriState
	IsSingleCell TriState
	IsPairedEnd  TriState
	LibPrep      LibPrep
	Tech10x      Tech10x
	CellPrep     CellPrep

	// Secondary metadata columns.
	Organism             Organism
	Tissue               string
	TissueOntologyTermID *string
	Disease              string
	Perturbation         string
	CellLine             string

	// CZICollectionID and CZICollectionName are optional cross-references to
	// an external collection; populated by downstream curation, not by the
	// extraction workflow.
	CZICollectionID   *string
	CZICollectionName *string

	// Notes records provenance for the row.
	Notes string

	// CreatedAt and UpdatedAt are maintained by a database trigger.
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSRXRecord assembles a persisted record from the two extraction variants.
// The primary variant is normalized and the secondary variant truncated
// before assembly, so the record always satisfies storage constraints.
func NewSRXRecord(db Database, entrezID int64, accession string, primary *PrimaryMetadata, secondary *SecondaryMetadata) *SRXRecord {
	rec := &SRXRecord{
		Database:     db,
		EntrezID:     entrezID,
		SRXAccession: accession,
		Notes:        ProvenanceNote,
	}
	if primary != nil {
		p := *primary
		p.Normalize()
		rec.IsIllumina = p.IsIllumina
		rec.IsSingleCell = p.IsSingleCell
		rec.IsPairedEnd = p.IsPairedEnd
		rec.LibPrep = p.LibPrep
		rec.Tech10x = p.Tech10x
		rec.CellPrep = p.CellPrep
	}
	if secondary != nil {
		s := *secondary
		s.Truncate()
		rec.Organism = s.Organism
		rec.Tissue = s.Tissue
		if s.TissueOntologyTermID != "" {
			term := s.TissueOntologyTermID
			rec.TissueOntologyTermID = &term
		}
		rec.Disease = s.Disease
		rec.Perturbation = s.Perturbation
		rec.CellLine = s.CellLine
	}
	return rec
}

// SRXRun is one experiment-to-run mapping row in srx_srr, keyed by the
// (srx_accession, srr_accession) pair.
type SRXRun struct {
	SRXAccession string
	SRRAccession string

	// CreatedAt and UpdatedAt are maintained by a database trigger.
	CreatedAt time.Time
	UpdatedAt time.Time
}
