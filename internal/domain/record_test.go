package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSRXRecord(t *testing.T) {
	primary := &PrimaryMetadata{
		IsIllumina:   TriStateYes,
		IsSingleCell: TriStateYes,
		IsPairedEnd:  TriStateYes,
		LibPrep:      LibPrepSmartSeq2,
		Tech10x:      Tech10x3PrimeGEX,
		CellPrep:     CellPrepSingleCell,
	}
	secondary := &SecondaryMetadata{
		Organism: OrganismHuman,
		Tissue:   strings.Repeat("x", 120),
		Disease:  "healthy",
	}

	rec := NewSRXRecord(DatabaseSRA, 18060880, "SRX13201194", primary, secondary)

	assert.Equal(t, DatabaseSRA, rec.Database)
	assert.Equal(t, int64(18060880), rec.EntrezID)
	assert.Equal(t, "SRX13201194", rec.SRXAccession)
	assert.Equal(t, ProvenanceNote, rec.Notes)

	// Normalization applies to the stored copy, not the caller's struct.
	assert.Equal(t, Tech10xNotApplicable, rec.Tech10x)
	assert.Equal(t, Tech10x3PrimeGEX, primary.Tech10x)

	// Truncation applies on assembly.
	assert.Len(t, rec.Tissue, MaxTissueLen)
	assert.Equal(t, strings.Repeat("x", 120), secondary.Tissue)

	assert.Nil(t, rec.TissueOntologyTermID)
	assert.Nil(t, rec.CZICollectionID)
}

func TestNewSRXRecord_OntologyTerm(t *testing.T) {
	secondary := &SecondaryMetadata{
		Organism:             OrganismMouse,
		Tissue:               "liver",
		TissueOntologyTermID: "UBERON:0002107",
	}

	rec := NewSRXRecord(DatabaseGDS, 42, "SRX1000000", nil, secondary)

	require.NotNil(t, rec.TissueOntologyTermID)
	assert.Equal(t, "UBERON:0002107", *rec.TissueOntologyTermID)
}

func TestExtractionJob_Finalize(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		statuses []ItemStatus
		expected JobStatus
	}{
		{
			name:     "all completed",
			statuses: []ItemStatus{ItemStatusCompleted, ItemStatusCompleted},
			expected: JobStatusCompleted,
		},
		{
			name:     "skipped counts as success",
			statuses: []ItemStatus{ItemStatusCompleted, ItemStatusSkipped},
			expected: JobStatusCompleted,
		},
		{
			name:     "mixed outcomes are partial",
			statuses: []ItemStatus{ItemStatusCompleted, ItemStatusFailed},
			expected: JobStatusPartial,
		},
		{
			name:     "all failed",
			statuses: []ItemStatus{ItemStatusFailed, ItemStatusFailed},
			expected: JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewExtractionJob(DatabaseSRA, make([]int64, len(tt.statuses)))
			for i, s := range tt.statuses {
				job.Items[i].Status = s
			}

			job.Finalize(now)

			assert.Equal(t, tt.expected, job.Status)
			assert.True(t, job.Status.IsTerminal())
			require.NotNil(t, job.CompletedAt)
		})
	}
}

func TestNewExtractionJob(t *testing.T) {
	job := NewExtractionJob(DatabaseSRA, []int64{1, 2, 3})

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 3, job.SubmittedCount)
	require.Len(t, job.Items, 3)
	for i, item := range job.Items {
		assert.Equal(t, job.ID, item.JobID)
		assert.Equal(t, int64(i+1), item.EntrezID)
		assert.Equal(t, ItemStatusPending, item.Status)
	}
}
