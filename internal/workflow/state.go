package workflow

import (
	"fmt"
	"strings"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// State is the mutable per-accession workflow state. One State is created
// per (database, entrez_id) pair, threaded through the graph steps, and
// discarded when the run finishes. It is never shared across goroutines.
type State struct {
	// Database is the Entrez namespace the identifier belongs to.
	Database domain.Database

	// EntrezID is the numeric Entrez identifier within Database.
	EntrezID int64

	// ExperimentAccession is the SRX/ERX accession under extraction. Empty
	// until the first evidence pass resolves it from the Entrez record.
	ExperimentAccession string

	// Level is the extraction pass the run is in. Starts primary, advances
	// to secondary exactly once.
	Level domain.MetadataLevel

	// Attempts counts completed routing passes at the current level. Reset
	// to zero on escalation.
	Attempts int

	// Route is the router's verdict on the latest extraction pass.
	Route domain.Route

	// Primary and Secondary hold the extracted field variants once their
	// level's extraction pass has run.
	Primary   *domain.PrimaryMetadata
	Secondary *domain.SecondaryMetadata

	// RunAccessions are the SRR/ERR accessions resolved for the experiment,
	// deduplicated in first-seen order.
	RunAccessions []string

	// Transcript accumulates the evidence, extraction summaries, and
	// routing feedback collected so far, one block per entry.
	Transcript []string
}

// NewState creates a fresh primary-level state for one identifier. The
// accession may be empty; the first evidence pass then resolves it.
func NewState(db domain.Database, entrezID int64, accession string) *State {
	return &State{
		Database:            db,
		EntrezID:            entrezID,
		ExperimentAccession: accession,
		Level:               domain.LevelPrimary,
	}
}

// AppendTranscript records one block of workflow history.
func (s *State) AppendTranscript(block string) {
	block = strings.TrimSpace(block)
	if block == "" {
		return
	}
	s.Transcript = append(s.Transcript, block)
}

// TranscriptText renders the accumulated history as one document.
func (s *State) TranscriptText() string {
	return strings.Join(s.Transcript, "\n\n")
}

// MissingFields returns the descriptions of the current level's fields that
// still need evidence. Before the first extraction pass, and whenever every
// field already resolved, all of the level's fields are requested so a
// router-driven retry can re-confirm weakly supported values.
func (s *State) MissingFields() []domain.FieldDescription {
	all := s.Level.FieldDescriptions()

	var incomplete []string
	switch s.Level {
	case domain.LevelPrimary:
		if s.Primary == nil {
			return all
		}
		incomplete = s.Primary.IncompleteFields()
	case domain.LevelSecondary:
		if s.Secondary == nil {
			return all
		}
		if !s.Secondary.Organism.Complete() {
			incomplete = append(incomplete, "organism")
		}
	}
	if len(incomplete) == 0 {
		return all
	}

	missing := make([]domain.FieldDescription, 0, len(incomplete))
	for _, fd := range all {
		for _, name := range incomplete {
			if fd.Name == name {
				missing = append(missing, fd)
				break
			}
		}
	}
	return missing
}

// ExtractionResult assembles the tagged result for the current level from
// the extracted variant. Returns nil when the level has not extracted yet.
func (s *State) ExtractionResult() *domain.ExtractionResult {
	switch s.Level {
	case domain.LevelPrimary:
		if s.Primary == nil {
			return nil
		}
		return &domain.ExtractionResult{Level: domain.LevelPrimary, Primary: s.Primary}
	case domain.LevelSecondary:
		if s.Secondary == nil {
			return nil
		}
		return &domain.ExtractionResult{Level: domain.LevelSecondary, Secondary: s.Secondary}
	}
	return nil
}

// Record assembles the persisted metadata row from the extracted variants.
func (s *State) Record() *domain.SRXRecord {
	return domain.NewSRXRecord(s.Database, s.EntrezID, s.ExperimentAccession, s.Primary, s.Secondary)
}

// FinalSummary renders the run outcome as human-readable lines: the
// accession, its runs, and every extracted field.
func (s *State) FinalSummary() string {
	lines := []string{
		"# SRX accession: " + s.ExperimentAccession,
		" - SRR accessions: " + domain.JoinList(s.RunAccessions),
	}
	if s.Primary != nil {
		r := domain.ExtractionResult{Level: domain.LevelPrimary, Primary: s.Primary}
		lines = append(lines, r.FieldLines()...)
	}
	if s.Secondary != nil {
		r := domain.ExtractionResult{Level: domain.LevelSecondary, Secondary: s.Secondary}
		lines = append(lines, r.FieldLines()...)
	}
	return strings.Join(lines, "\n")
}

// describe renders the identity of the state for logs and errors.
func (s *State) describe() string {
	if s.ExperimentAccession != "" {
		return s.ExperimentAccession
	}
	return fmt.Sprintf("%s:%d", s.Database, s.EntrezID)
}
