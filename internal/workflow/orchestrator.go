package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seqcore/sra-metadata-service/internal/domain"
	"github.com/seqcore/sra-metadata-service/internal/entrez"
	"github.com/seqcore/sra-metadata-service/internal/events"
	"github.com/seqcore/sra-metadata-service/internal/observability"
	"github.com/seqcore/sra-metadata-service/internal/repository"
)

// maxItemErrorLen caps the failure message stored on a job item.
const maxItemErrorLen = 500

// Runner executes the extraction graph for one identifier. *Engine
// satisfies it.
type Runner interface {
	Run(ctx context.Context, db domain.Database, entrezID int64, accession string) (*Result, error)
}

// Compile-time check that Engine implements Runner.
var _ Runner = (*Engine)(nil)

// DatasetSearcher finds Entrez identifiers matching a search expression.
// *entrez.Client satisfies it.
type DatasetSearcher interface {
	ESearch(ctx context.Context, db domain.Database, query string, opts entrez.SearchOptions) (*entrez.SearchResult, error)
}

// Orchestrator fans batches of identifiers out over the extraction engine
// with bounded parallelism. Failures stay isolated to their accession: one
// failed identifier never stops the rest of the batch.
type Orchestrator struct {
	runner  Runner
	store   repository.MetadataRepository
	jobs    repository.JobRepository
	search  DatasetSearcher
	events  events.Publisher
	metrics *observability.Metrics
	logger  zerolog.Logger
	cfg     Config
}

// OrchestratorDeps bundles the orchestrator's collaborators. Runner is
// required. Store enables skip filtering, Jobs enables job bookkeeping,
// Search enables dataset queries, Events and Metrics enable publishing and
// instrumentation; each may be nil to disable its concern.
type OrchestratorDeps struct {
	Runner  Runner
	Store   repository.MetadataRepository
	Jobs    repository.JobRepository
	Search  DatasetSearcher
	Events  events.Publisher
	Metrics *observability.Metrics
}

// NewOrchestrator creates a batch orchestrator.
func NewOrchestrator(deps OrchestratorDeps, logger zerolog.Logger, cfg Config) *Orchestrator {
	pub := deps.Events
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Orchestrator{
		runner:  deps.Runner,
		store:   deps.Store,
		jobs:    deps.Jobs,
		search:  deps.Search,
		events:  pub,
		metrics: deps.Metrics,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
		cfg:     cfg.withDefaults(),
	}
}

// ItemOutcome reports a status change for one identifier within a batch.
// An identifier is announced running when its worker starts, then reported
// once more with its terminal status.
type ItemOutcome struct {
	EntrezID int64
	Status   domain.ItemStatus

	// Result is set for completed items.
	Result *Result

	// Err is set for failed items.
	Err error
}

// ItemFailure pairs an identifier with the error that stopped it.
type ItemFailure struct {
	EntrezID int64
	Err      error
}

// BatchResult summarizes a processed batch.
type BatchResult struct {
	Total     int
	Completed int
	Skipped   int
	Failed    int
	Results   []*Result
	Failures  []ItemFailure
}

// ProcessBatch extracts metadata for a batch of identifiers without job
// bookkeeping. Identifiers that already have metadata rows are skipped
// unless reprocessing is enabled. The error is non-nil only when the whole
// batch was cut short; per-identifier failures are reported in the result.
func (o *Orchestrator) ProcessBatch(ctx context.Context, db domain.Database, entrezIDs []int64) (*BatchResult, error) {
	return o.processAll(ctx, db, entrezIDs, nil)
}

// SubmitJob records a new pending job for a batch of identifiers. The query
// is informational, recorded for jobs whose identifiers came from a dataset
// search.
func (o *Orchestrator) SubmitJob(ctx context.Context, db domain.Database, entrezIDs []int64, query string) (*domain.ExtractionJob, error) {
	if !db.Valid() {
		return nil, domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}
	if len(entrezIDs) == 0 {
		return nil, domain.NewValidationError("entrez_ids", "must not be empty")
	}

	job := domain.NewExtractionJob(db, dedupIDs(entrezIDs))
	job.Query = query
	if o.jobs != nil {
		if err := o.jobs.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
	}
	if o.metrics != nil {
		o.metrics.RecordJobSubmitted()
	}
	o.logger.Info().
		Str("job_id", job.ID.String()).
		Str("database", string(db)).
		Int("items", len(job.Items)).
		Msg("job submitted")
	return job, nil
}

// ProcessJob runs a submitted job, updating item statuses as workers
// progress and finalizing the job when the batch drains. Bookkeeping is
// best-effort: a failed status write is logged and the batch continues. A
// canceled batch returns before finalizing, leaving the job running.
func (o *Orchestrator) ProcessJob(ctx context.Context, job *domain.ExtractionJob) error {
	logger := observability.WithJobContext(o.logger, job.ID.String(), string(job.Database))

	if o.jobs != nil {
		if err := o.jobs.MarkRunning(ctx, job.ID); err != nil {
			logger.Warn().Err(err).Msg("mark job running failed, continuing")
		}
	}
	job.Status = domain.JobStatusRunning

	items := make(map[int64]*domain.JobItem, len(job.Items))
	ids := make([]int64, 0, len(job.Items))
	for i := range job.Items {
		items[job.Items[i].EntrezID] = &job.Items[i]
		ids = append(ids, job.Items[i].EntrezID)
	}

	var mu sync.Mutex
	notify := func(out ItemOutcome) {
		item, ok := items[out.EntrezID]
		if !ok {
			return
		}
		mu.Lock()
		item.Status = out.Status
		switch out.Status {
		case domain.ItemStatusCompleted:
			item.SRXAccession = out.Result.SRXAccession
			item.RunCount = len(out.Result.RunAccessions)
		case domain.ItemStatusFailed:
			item.Error = domain.TruncateField(out.Err.Error(), maxItemErrorLen)
		}
		snapshot := *item
		mu.Unlock()

		if o.jobs != nil {
			if err := o.jobs.UpdateItem(ctx, &snapshot); err != nil {
				logger.Warn().Err(err).Int64("entrez_id", out.EntrezID).Msg("update job item failed")
			}
		}
	}

	batch, err := o.withFlags(job.Flags).processAll(ctx, job.Database, ids, notify)
	if err != nil {
		logger.Error().Err(err).Msg("job processing aborted")
		return err
	}

	job.Finalize(time.Now())
	if o.jobs != nil {
		if err := o.jobs.Finalize(ctx, job); err != nil {
			logger.Warn().Err(err).Msg("finalize job failed")
		}
	}
	if o.metrics != nil {
		o.metrics.RecordJobCompleted(string(job.Status))
	}
	logger.Info().
		Str("status", string(job.Status)).
		Int("completed", batch.Completed).
		Int("skipped", batch.Skipped).
		Int("failed", batch.Failed).
		Msg("job finished")
	return nil
}

// processAll is the shared batch loop: dedup, skip filtering, then a
// bounded fan-out over the runner. Workers never return errors to the
// group; failures are recorded per identifier so the rest of the batch
// keeps going.
func (o *Orchestrator) processAll(ctx context.Context, db domain.Database, entrezIDs []int64, notify func(ItemOutcome)) (*BatchResult, error) {
	if !db.Valid() {
		return nil, domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}

	ids := dedupIDs(entrezIDs)
	batch := &BatchResult{Total: len(ids)}
	processed := o.processedSet(ctx, db, ids)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(o.cfg.MaxParallel)

	for _, id := range ids {
		if processed[id] {
			if o.metrics != nil {
				o.metrics.RecordExtractionSkipped()
			}
			o.logger.Info().Int64("entrez_id", id).Msg("metadata already extracted, skipping")
			batch.Skipped++
			if notify != nil {
				notify(ItemOutcome{EntrezID: id, Status: domain.ItemStatusSkipped})
			}
			continue
		}

		g.Go(func() error {
			if o.metrics != nil {
				o.metrics.RecordWorkerStarted()
				defer o.metrics.RecordWorkerFinished()
			}
			if notify != nil {
				notify(ItemOutcome{EntrezID: id, Status: domain.ItemStatusRunning})
			}

			res, err := o.runner.Run(ctx, db, id, "")
			if err != nil {
				o.publishFailed(ctx, db, id, err)
				mu.Lock()
				batch.Failed++
				batch.Failures = append(batch.Failures, ItemFailure{EntrezID: id, Err: err})
				mu.Unlock()
				if notify != nil {
					notify(ItemOutcome{EntrezID: id, Status: domain.ItemStatusFailed, Err: err})
				}
				return nil
			}

			o.publishCompleted(ctx, res)
			mu.Lock()
			batch.Completed++
			batch.Results = append(batch.Results, res)
			mu.Unlock()
			if notify != nil {
				notify(ItemOutcome{EntrezID: id, Status: domain.ItemStatusCompleted, Result: res})
			}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return batch, fmt.Errorf("batch processing: %w: %w", domain.ErrCancelled, err)
	}
	return batch, nil
}

// withFlags returns the orchestrator that will process a batch under the
// given gating overrides: the receiver itself when there are none, otherwise
// a copy with the derived configuration. When the runner is an *Engine its
// persistence gating is derived the same way.
func (o *Orchestrator) withFlags(f domain.JobFlags) *Orchestrator {
	if f == (domain.JobFlags{}) {
		return o
	}
	clone := *o
	clone.cfg = o.cfg.withFlags(f)
	if eng, ok := o.runner.(*Engine); ok {
		clone.runner = eng.WithConfig(eng.cfg.withFlags(f))
	}
	return &clone
}

// processedSet reports which identifiers already have metadata rows. Skip
// filtering is best-effort: a lookup failure processes everything.
func (o *Orchestrator) processedSet(ctx context.Context, db domain.Database, ids []int64) map[int64]bool {
	if !o.cfg.UseDatabase || o.cfg.ReprocessExisting || o.store == nil || len(ids) == 0 {
		return nil
	}
	processed, err := o.store.ProcessedEntrezIDs(ctx, db, ids)
	if err != nil {
		o.logger.Warn().Err(err).Msg("processed-identifier lookup failed, continuing with all identifiers")
		return nil
	}
	return processed
}

// publishCompleted emits an extraction.completed event. Delivery is
// best-effort.
func (o *Orchestrator) publishCompleted(ctx context.Context, res *Result) {
	ev := events.ExtractionEvent{
		Database:     string(res.Database),
		EntrezID:     res.EntrezID,
		SRXAccession: res.SRXAccession,
		Level:        string(res.Level),
		RunCount:     len(res.RunAccessions),
	}
	if err := o.events.ExtractionCompleted(ctx, ev); err != nil {
		o.logger.Warn().Err(err).Int64("entrez_id", res.EntrezID).Msg("publish extraction event failed")
	}
}

// publishFailed emits an extraction.failed event. Delivery is best-effort.
func (o *Orchestrator) publishFailed(ctx context.Context, db domain.Database, entrezID int64, cause error) {
	ev := events.ExtractionEvent{
		Database: string(db),
		EntrezID: entrezID,
		Error:    cause.Error(),
	}
	if err := o.events.ExtractionFailed(ctx, ev); err != nil {
		o.logger.Warn().Err(err).Int64("entrez_id", entrezID).Msg("publish extraction event failed")
	}
}

// DatasetSearch describes an Entrez query for datasets to extract.
type DatasetSearch struct {
	Database domain.Database
	Query    string
	Limit    int
	MinDate  *time.Time
	MaxDate  *time.Time
}

// FindDatasets searches Entrez for identifiers matching the query, in the
// order NCBI returned them.
func (o *Orchestrator) FindDatasets(ctx context.Context, req DatasetSearch) ([]int64, error) {
	if o.search == nil {
		return nil, fmt.Errorf("dataset search: %w: no Entrez client configured", domain.ErrServiceUnavailable)
	}
	res, err := o.search.ESearch(ctx, req.Database, req.Query, entrez.SearchOptions{
		MaxResults: req.Limit,
		MinDate:    req.MinDate,
		MaxDate:    req.MaxDate,
	})
	if err != nil {
		return nil, fmt.Errorf("dataset search: %w", err)
	}
	o.logger.Info().
		Str("database", string(req.Database)).
		Str("query", req.Query).
		Int("matches", res.Count).
		Int("returned", len(res.IDs)).
		Msg("dataset search completed")
	return res.IDs, nil
}

// dedupIDs drops duplicate identifiers, preserving first-seen order.
func dedupIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
