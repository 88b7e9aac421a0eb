package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/seqcore/sra-metadata-service/internal/domain"
	"github.com/seqcore/sra-metadata-service/internal/workflow"
)

// Request limits.
const (
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
	defaultSearchLimit = 100
)

// validate checks request DTOs, reporting failures under JSON field names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// startExtractionRequest is the JSON request body for submitting a batch of
// Entrez identifiers. The optional flags override the configured pipeline
// gating for this job only.
type startExtractionRequest struct {
	Database          string  `json:"database" validate:"required,oneof=sra gds"`
	EntrezIDs         []int64 `json:"entrez_ids" validate:"required,min=1,max=10000,dive,gt=0"`
	UseDatabase       *bool   `json:"use_database,omitempty"`
	NoSRR             *bool   `json:"no_srr,omitempty"`
	ReprocessExisting *bool   `json:"reprocess_existing,omitempty"`
}

func (r *startExtractionRequest) flags() domain.JobFlags {
	return domain.JobFlags{
		UseDatabase:       r.UseDatabase,
		NoSRR:             r.NoSRR,
		ReprocessExisting: r.ReprocessExisting,
	}
}

// datasetSearchRequest is the JSON request body for an Entrez dataset search.
type datasetSearchRequest struct {
	Database string  `json:"database" validate:"required,oneof=sra gds"`
	Query    string  `json:"query" validate:"required,min=3,max=10000"`
	Limit    int     `json:"limit" validate:"omitempty,gt=0,lte=10000"`
	MinDate  *string `json:"min_date,omitempty"`
	MaxDate  *string `json:"max_date,omitempty"`
}

// startExtraction handles POST /api/v1/extractions.
// It accepts a batch of identifiers, records a job, and starts processing it
// in the background.
func (s *Server) startExtraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startExtractionRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	job, err := s.extractions.SubmitJob(ctx, domain.Database(req.Database), req.EntrezIDs, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	job.Flags = req.flags()

	s.logger.Info().
		Str("correlation_id", correlationIDFromContext(ctx)).
		Str("job_id", job.ID.String()).
		Str("database", req.Database).
		Int("items", len(job.Items)).
		Msg("extraction job accepted")

	s.processAsync(job)

	writeJSON(w, http.StatusAccepted, jobToSubmitResponse(job))
}

// getExtractionJob handles GET /api/v1/extractions/{jobID}.
// It returns the job status with per-identifier progress.
func (s *Server) getExtractionJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseUUID(w, chi.URLParam(r, "jobID"), "job_id")
	if !ok {
		return
	}
	if s.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job tracking is not configured")
		return
	}

	job, err := s.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobToStatusResponse(job))
}

// getExperiment handles GET /api/v1/experiments/{accession}.
// It returns the stored metadata row together with its run accessions.
func (s *Server) getExperiment(w http.ResponseWriter, r *http.Request) {
	accession := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "accession")))
	if !domain.ValidExperimentAccession(accession) {
		writeError(w, http.StatusBadRequest, "accession must be SRX or ERX followed by digits")
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store is not configured")
		return
	}

	record, err := s.store.GetByAccession(r.Context(), accession)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	runs, err := s.store.ListRuns(r.Context(), accession)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recordToResponse(record, runs))
}

// searchDatasets handles POST /api/v1/datasets/search.
// It resolves an Entrez query to identifiers and submits them as a job.
func (s *Server) searchDatasets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req datasetSearchRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	search := workflow.DatasetSearch{
		Database: domain.Database(req.Database),
		Query:    req.Query,
		Limit:    req.Limit,
	}
	if search.Limit <= 0 {
		search.Limit = defaultSearchLimit
	}
	if req.MinDate != nil {
		t, parseErr := time.Parse(time.RFC3339, *req.MinDate)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid min_date format: expected RFC3339")
			return
		}
		search.MinDate = &t
	}
	if req.MaxDate != nil {
		t, parseErr := time.Parse(time.RFC3339, *req.MaxDate)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid max_date format: expected RFC3339")
			return
		}
		search.MaxDate = &t
	}

	ids, err := s.extractions.FindDatasets(ctx, search)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(ids) == 0 {
		writeError(w, http.StatusNotFound, "no datasets matched the query")
		return
	}

	job, err := s.extractions.SubmitJob(ctx, search.Database, ids, req.Query)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	s.logger.Info().
		Str("correlation_id", correlationIDFromContext(ctx)).
		Str("job_id", job.ID.String()).
		Str("database", req.Database).
		Str("query", req.Query).
		Int("items", len(job.Items)).
		Msg("dataset search job accepted")

	s.processAsync(job)

	writeJSON(w, http.StatusAccepted, jobToSubmitResponse(job))
}

// processAsync runs the job on a context detached from the request, so
// extraction continues after the 202 response is written.
func (s *Server) processAsync(job *domain.ExtractionJob) {
	go func() {
		if err := s.extractions.ProcessJob(context.Background(), job); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("job processing failed")
		}
	}()
}

// decodeRequest reads, unmarshals, and validates a JSON request body,
// writing a 400 response on any failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := validate.Struct(target); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders the first field failure in a client-friendly form.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked to
// clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not included to avoid echoing
// potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}
