package httpserver

import (
	"time"

	"github.com/seqcore/sra-metadata-service/internal/domain"
)

// Job and experiment response types for JSON serialization.

type jobSubmitResponse struct {
	JobID          string    `json:"job_id"`
	Database       string    `json:"database"`
	Status         string    `json:"status"`
	SubmittedCount int       `json:"submitted_count"`
	CreatedAt      time.Time `json:"created_at"`
}

type jobStatusResponse struct {
	JobID          string            `json:"job_id"`
	Database       string            `json:"database"`
	Query          string            `json:"query,omitempty"`
	Status         string            `json:"status"`
	SubmittedCount int               `json:"submitted_count"`
	Completed      int               `json:"completed"`
	Skipped        int               `json:"skipped"`
	Failed         int               `json:"failed"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Items          []jobItemResponse `json:"items"`
}

type jobItemResponse struct {
	EntrezID     int64  `json:"entrez_id"`
	Status       string `json:"status"`
	SRXAccession string `json:"srx_accession,omitempty"`
	RunCount     int    `json:"run_count"`
	Error        string `json:"error,omitempty"`
}

type experimentResponse struct {
	Database     string `json:"database"`
	EntrezID     int64  `json:"entrez_id"`
	SRXAccession string `json:"srx_accession"`

	IsIllumina   string `json:"is_illumina"`
	IsSingleCell string `json:"is_single_cell"`
	IsPairedEnd  string `json:"is_paired_end"`
	LibPrep      string `json:"lib_prep"`
	Tech10x      string `json:"tech_10x"`
	CellPrep     string `json:"cell_prep"`

	Organism             string `json:"organism"`
	Tissue               string `json:"tissue,omitempty"`
	TissueOntologyTermID string `json:"tissue_ontology_term_id,omitempty"`
	Disease              string `json:"disease,omitempty"`
	Perturbation         string `json:"perturbation,omitempty"`
	CellLine             string `json:"cell_line,omitempty"`

	CZICollectionID   string `json:"czi_collection_id,omitempty"`
	CZICollectionName string `json:"czi_collection_name,omitempty"`

	Notes         string    `json:"notes,omitempty"`
	SRRAccessions []string  `json:"srr_accessions"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Converter functions

func jobToSubmitResponse(job *domain.ExtractionJob) jobSubmitResponse {
	return jobSubmitResponse{
		JobID:          job.ID.String(),
		Database:       string(job.Database),
		Status:         string(job.Status),
		SubmittedCount: job.SubmittedCount,
		CreatedAt:      job.CreatedAt,
	}
}

func jobToStatusResponse(job *domain.ExtractionJob) jobStatusResponse {
	resp := jobStatusResponse{
		JobID:          job.ID.String(),
		Database:       string(job.Database),
		Query:          job.Query,
		Status:         string(job.Status),
		SubmittedCount: job.SubmittedCount,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    job.CompletedAt,
		Items:          make([]jobItemResponse, len(job.Items)),
	}
	for i, it := range job.Items {
		resp.Items[i] = jobItemResponse{
			EntrezID:     it.EntrezID,
			Status:       string(it.Status),
			SRXAccession: it.SRXAccession,
			RunCount:     it.RunCount,
			Error:        it.Error,
		}
		switch it.Status {
		case domain.ItemStatusCompleted:
			resp.Completed++
		case domain.ItemStatusSkipped:
			resp.Skipped++
		case domain.ItemStatusFailed:
			resp.Failed++
		}
	}
	return resp
}

func recordToResponse(rec *domain.SRXRecord, runs []domain.SRXRun) experimentResponse {
	srr := make([]string, len(runs))
	for i, run := range runs {
		srr[i] = run.SRRAccession
	}
	resp := experimentResponse{
		Database:      string(rec.Database),
		EntrezID:      rec.EntrezID,
		SRXAccession:  rec.SRXAccession,
		IsIllumina:    string(rec.IsIllumina),
		IsSingleCell:  string(rec.IsSingleCell),
		IsPairedEnd:   string(rec.IsPairedEnd),
		LibPrep:       string(rec.LibPrep),
		Tech10x:       string(rec.Tech10x),
		CellPrep:      string(rec.CellPrep),
		Organism:      string(rec.Organism),
		Tissue:        rec.Tissue,
		Disease:       rec.Disease,
		Perturbation:  rec.Perturbation,
		CellLine:      rec.CellLine,
		Notes:         rec.Notes,
		SRRAccessions: srr,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if rec.TissueOntologyTermID != nil {
		resp.TissueOntologyTermID = *rec.TissueOntologyTermID
	}
	if rec.CZICollectionID != nil {
		resp.CZICollectionID = *rec.CZICollectionID
	}
	if rec.CZICollectionName != nil {
		resp.CZICollectionName = *rec.CZICollectionName
	}
	return resp
}
