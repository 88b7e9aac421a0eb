// Package workflow implements the per-accession extraction graph and the
// batch orchestrator that fans it out.
//
// Each (database, entrez_id) pair runs through a typed state machine:
// evidence collection via a research sub-agent, constrained-decoding field
// extraction, a completeness router with a bounded retry budget, a one-way
// escalation from primary to secondary metadata, run-accession resolution,
// and an idempotent database upsert. The orchestrator runs many accessions
// concurrently with per-accession failure isolation.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seqcore/sra-metadata-service/internal/domain"
	"github.com/seqcore/sra-metadata-service/internal/llm"
	"github.com/seqcore/sra-metadata-service/internal/observability"
	"github.com/seqcore/sra-metadata-service/internal/repository"
)

// Defaults for zero-valued Config fields.
const (
	DefaultMaxParallel = 3
	DefaultMaxSteps    = 50
)

// Researcher answers free-text questions about one Entrez record.
// *agent.Session satisfies it.
type Researcher interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// ResearcherFactory creates the research sub-agent for one Entrez record.
type ResearcherFactory func(db domain.Database, entrezID int64) Researcher

// ProgressFunc receives per-step progress notifications for one accession
// run. Implementations must be safe for concurrent use; the orchestrator
// invokes it from multiple worker goroutines.
type ProgressFunc func(entrezID int64, step Step, detail string)

// Config holds the workflow settings shared by the engine and the
// orchestrator.
type Config struct {
	// MaxParallel caps simultaneous per-accession runs in a batch.
	MaxParallel int

	// MaxSteps bounds the number of graph steps per accession run.
	MaxSteps int

	// UseDatabase enables the metadata upsert; disable for dry runs.
	UseDatabase bool

	// NoSRR disables the run-accession upsert even when UseDatabase is on.
	NoSRR bool

	// ReprocessExisting re-runs identifiers that already have metadata rows.
	ReprocessExisting bool
}

// withDefaults fills zero-valued fields.
func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = DefaultMaxParallel
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	return c
}

// withFlags folds per-job gating overrides into the configuration.
func (c Config) withFlags(f domain.JobFlags) Config {
	if f.UseDatabase != nil {
		c.UseDatabase = *f.UseDatabase
	}
	if f.NoSRR != nil {
		c.NoSRR = *f.NoSRR
	}
	if f.ReprocessExisting != nil {
		c.ReprocessExisting = *f.ReprocessExisting
	}
	return c
}

// Engine runs the extraction graph for single accessions.
type Engine struct {
	research ResearcherFactory
	decoder  *llm.Decoder
	store    repository.MetadataRepository
	metrics  *observability.Metrics
	progress ProgressFunc
	logger   zerolog.Logger
	cfg      Config
}

// EngineOption configures optional Engine collaborators.
type EngineOption func(*Engine)

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithProgress attaches a per-step progress callback.
func WithProgress(fn ProgressFunc) EngineOption {
	return func(e *Engine) { e.progress = fn }
}

// NewEngine creates an extraction engine. The store may be nil when
// UseDatabase is off.
func NewEngine(research ResearcherFactory, decoder *llm.Decoder, store repository.MetadataRepository, logger zerolog.Logger, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		research: research,
		decoder:  decoder,
		store:    store,
		logger:   logger.With().Str("component", "workflow_engine").Logger(),
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithConfig returns a copy of the engine running under cfg. All
// collaborators are shared with the receiver.
func (e *Engine) WithConfig(cfg Config) *Engine {
	clone := *e
	clone.cfg = cfg.withDefaults()
	return &clone
}

// Result is the outcome of one completed accession run.
type Result struct {
	// Database and EntrezID identify the extracted record.
	Database domain.Database
	EntrezID int64

	// SRXAccession is the resolved experiment accession.
	SRXAccession string

	// Level is the metadata level the run finished at.
	Level domain.MetadataLevel

	// Record is the assembled metadata row, whether or not it was persisted.
	Record *domain.SRXRecord

	// RunAccessions are the resolved SRR/ERR accessions in first-seen order.
	RunAccessions []string

	// Summary is the human-readable rendering of the extracted fields.
	Summary string

	// Duration is the wall-clock time the run took.
	Duration time.Duration
}

// Run executes the extraction graph for one identifier. The accession may be
// empty, in which case the first evidence pass resolves it from the Entrez
// record. An accession without an SRX/ERX prefix is extracted normally but
// yields no run accessions. The returned error wraps one of the domain
// sentinels.
func (e *Engine) Run(ctx context.Context, db domain.Database, entrezID int64, accession string) (*Result, error) {
	if !db.Valid() {
		return nil, domain.NewValidationError("database", fmt.Sprintf("unknown database %q", db))
	}
	if entrezID <= 0 {
		return nil, domain.NewValidationError("entrez_id", "must be positive")
	}

	st := NewState(db, entrezID, accession)
	logger := observability.WithAccessionContext(e.logger, entrezID, accession)
	r := &run{
		engine: e,
		st:     st,
		agent:  e.research(db, entrezID),
		logger: logger,
	}

	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordExtractionStarted()
	}
	logger.Info().Msg("extraction started")

	if err := r.steps(ctx); err != nil {
		if e.metrics != nil {
			e.metrics.RecordExtractionFailed(time.Since(start).Seconds())
		}
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("extraction failed")
		return nil, err
	}

	duration := time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordExtractionCompleted(duration.Seconds())
	}
	logger.Info().
		Str("srx_accession", st.ExperimentAccession).
		Str("level", string(st.Level)).
		Int("run_count", len(st.RunAccessions)).
		Dur("duration", duration).
		Msg("extraction completed")
	r.notify(StepDone, "extraction complete")

	return &Result{
		Database:      st.Database,
		EntrezID:      st.EntrezID,
		SRXAccession:  st.ExperimentAccession,
		Level:         st.Level,
		Record:        st.Record(),
		RunAccessions: st.RunAccessions,
		Summary:       st.FinalSummary(),
		Duration:      duration,
	}, nil
}

// run carries one accession's execution: the engine's collaborators, the
// mutable state, the record-scoped research agent, and the step-scoped
// logger.
type run struct {
	engine *Engine
	st     *State
	agent  Researcher
	logger zerolog.Logger
}

// steps drives the state machine from evidence collection to done, bounded
// by the configured step ceiling.
func (r *run) steps(ctx context.Context) error {
	base := r.logger
	step := StepCollectEvidence
	for count := 1; ; count++ {
		if count > r.engine.cfg.MaxSteps {
			return fmt.Errorf("extraction for %s: %w after %d steps", r.st.describe(), domain.ErrStepLimitExceeded, r.engine.cfg.MaxSteps)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction for %s: %w: %w", r.st.describe(), domain.ErrCancelled, err)
		}

		r.logger = observability.WithStepContext(base, string(step), count)
		stepStart := time.Now()
		signal, err := r.execute(ctx, step)
		if r.engine.metrics != nil {
			r.engine.metrics.RecordStep(string(step), time.Since(stepStart).Seconds())
		}
		if err != nil {
			return err
		}

		next, err := Next(step, signal)
		if err != nil {
			return err
		}
		if next.Terminal() {
			return nil
		}
		step = next
	}
}

// execute dispatches one step to its handler.
func (r *run) execute(ctx context.Context, step Step) (Signal, error) {
	switch step {
	case StepCollectEvidence:
		return r.collect(ctx)
	case StepExtractFields:
		return r.extract(ctx)
	case StepRoute:
		return r.route(ctx)
	case StepEscalate:
		return r.escalateLevel()
	case StepResolveRuns:
		return r.resolve(ctx)
	case StepPersist:
		return r.persist(ctx)
	default:
		return "", fmt.Errorf("%w: no handler for step %q", domain.ErrInternalError, step)
	}
}

// notify delivers a progress update if a callback is attached.
func (r *run) notify(step Step, detail string) {
	if r.engine.progress != nil {
		r.engine.progress(r.st.EntrezID, step, detail)
	}
}

// collect runs one evidence pass: it asks the research sub-agent for the
// fields still missing at the current level and appends the answer to the
// transcript. The first pass must also resolve the experiment accession when
// the run started without one.
func (r *run) collect(ctx context.Context) (Signal, error) {
	question := collectionPrompt(r.st)
	answer, err := r.agent.Invoke(ctx, question)
	if err != nil {
		return "", fmt.Errorf("collect evidence for %s: %w: %w", r.st.describe(), domain.ErrAgentFailed, err)
	}

	if r.st.ExperimentAccession == "" {
		acc := domain.FindExperimentAccession(answer)
		if acc == "" {
			return "", fmt.Errorf("resolve experiment accession for %s: %w: evidence reports no SRX/ERX accession", r.st.describe(), domain.ErrAgentFailed)
		}
		r.st.ExperimentAccession = acc
		r.logger.Info().Str("srx_accession", acc).Msg("experiment accession resolved")
	}

	r.st.AppendTranscript(answer)
	r.logger.Debug().
		Str("level", string(r.st.Level)).
		Int("transcript_blocks", len(r.st.Transcript)).
		Msg("evidence collected")
	r.notify(StepCollectEvidence, fmt.Sprintf("evidence collected for %s", r.st.ExperimentAccession))
	return SignalAdvance, nil
}

// extract runs one constrained-decoding pass over the transcript, decoding
// into the current level's variant and appending the extraction summary to
// the transcript for the router and any later passes.
func (r *run) extract(ctx context.Context) (Signal, error) {
	level := r.st.Level
	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractionSystemPrompt(level)},
			{Role: llm.RoleUser, Content: r.st.TranscriptText()},
		},
	}

	var result *domain.ExtractionResult
	if level == domain.LevelSecondary {
		meta := &domain.SecondaryMetadata{}
		outcome, err := r.engine.decoder.Decode(ctx, req, meta)
		r.recordDecode(level, outcome)
		if err != nil {
			return "", fmt.Errorf("extract %s metadata for %s: %w: %w", level, r.st.describe(), domain.ErrExtractionFailed, err)
		}
		meta.Truncate()
		r.st.Secondary = meta
		result = &domain.ExtractionResult{Level: level, Secondary: meta}
	} else {
		meta := &domain.PrimaryMetadata{}
		outcome, err := r.engine.decoder.Decode(ctx, req, meta)
		r.recordDecode(level, outcome)
		if err != nil {
			return "", fmt.Errorf("extract %s metadata for %s: %w: %w", level, r.st.describe(), domain.ErrExtractionFailed, err)
		}
		meta.Normalize()
		r.st.Primary = meta
		result = &domain.ExtractionResult{Level: level, Primary: meta}
	}

	r.st.AppendTranscript(result.Summary())
	r.logger.Info().Str("level", string(level)).Msg("metadata extracted")
	r.notify(StepExtractFields, fmt.Sprintf("extracted %s metadata", level))
	return SignalAdvance, nil
}

// recordDecode counts the decode retries an extraction pass spent.
func (r *run) recordDecode(level domain.MetadataLevel, outcome *llm.DecodeOutcome) {
	if outcome == nil || r.engine.metrics == nil {
		return
	}
	for i := 1; i < outcome.Attempts; i++ {
		r.engine.metrics.RecordDecodeRetry(string(level))
	}
}

// route runs the completeness router. Every pass increments the attempt
// counter. Secondary metadata never consults the oracle; primary metadata
// asks a binary STOP/CONTINUE choice over the latest extraction summary.
// The retry budget is enforced here, after the increment, so an exhausted
// level advances even when the oracle wants more evidence.
func (r *run) route(ctx context.Context) (Signal, error) {
	st := r.st
	if st.Level == domain.LevelSecondary {
		st.Route = domain.RouteStop
		st.Attempts++
		st.AppendTranscript(secondarySkipFeedback)
	} else {
		req := llm.Request{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: routerSystemPrompt},
				{Role: llm.RoleUser, Content: st.ExtractionResult().Summary()},
			},
		}
		choice := &routeChoice{}
		outcome, err := r.engine.decoder.Decode(ctx, req, choice)
		r.recordDecode(st.Level, outcome)
		if err != nil {
			return "", fmt.Errorf("route %s metadata for %s: %w: %w", st.Level, st.describe(), domain.ErrExtractionFailed, err)
		}
		st.Route = choice.Choice
		st.Attempts++
		if st.Route == domain.RouteContinue {
			st.AppendTranscript(continueFeedback(st.ExperimentAccession))
		} else {
			st.AppendTranscript(stopFeedback(st.ExperimentAccession))
		}
	}

	if r.engine.metrics != nil {
		r.engine.metrics.RecordRouteDecision(string(st.Level), string(st.Route))
	}

	signal := routeSignal(st)
	if signal == SignalRetry {
		r.logger.Info().
			Str("level", string(st.Level)).
			Int("attempts", st.Attempts).
			Msg("router requested another evidence pass")
	} else {
		if st.Route == domain.RouteContinue {
			r.logger.Info().
				Str("level", string(st.Level)).
				Int("attempts", st.Attempts).
				Msg("attempt budget exhausted, advancing with incomplete fields")
		}
		if r.engine.metrics != nil {
			r.engine.metrics.RecordExtractionAttempts(string(st.Level), st.Attempts)
		}
	}
	r.notify(StepRoute, fmt.Sprintf("%s metadata routed %s (attempt %d)", st.Level, st.Route, st.Attempts))
	return signal, nil
}

// routeSignal maps the routing outcome to a graph signal. The attempt cap
// is compared after the increment, so a level at its budget always leaves
// the retry loop regardless of the route.
func routeSignal(st *State) Signal {
	if st.Attempts >= st.Level.MaxAttempts() {
		return advanceSignal(st.Level)
	}
	if st.Route == domain.RouteContinue {
		return SignalRetry
	}
	return advanceSignal(st.Level)
}

// advanceSignal selects how a level exits the retry loop: primary escalates
// to secondary, secondary proceeds to run resolution.
func advanceSignal(level domain.MetadataLevel) Signal {
	if level == domain.LevelPrimary {
		return SignalEscalate
	}
	return SignalAdvance
}

// escalateLevel advances the run from primary to secondary metadata and
// resets the attempt budget. The transition table only reaches this step
// from a primary-level route, so the escalation happens at most once.
func (r *run) escalateLevel() (Signal, error) {
	r.st.Level = domain.LevelSecondary
	r.st.Attempts = 0
	r.st.Route = ""
	if r.engine.metrics != nil {
		r.engine.metrics.RecordEscalation()
	}
	r.logger.Info().Msg("escalated to secondary metadata level")
	r.notify(StepEscalate, "escalated to secondary metadata")
	return SignalAdvance, nil
}

// resolve asks the sub-agent for the experiment's run accessions and parses
// them out of the answer. An accession without an SRX/ERX prefix cannot have
// runs; the problem is recorded as evidence and the run proceeds with none.
func (r *run) resolve(ctx context.Context) (Signal, error) {
	st := r.st
	question, ok := resolveRunsQuestion(st.ExperimentAccession)
	if !ok {
		st.AppendTranscript(question)
		r.logger.Warn().
			Str("srx_accession", st.ExperimentAccession).
			Msg("accession has no SRX/ERX prefix, skipping run resolution")
		r.notify(StepResolveRuns, "no run accessions resolvable")
		return SignalAdvance, nil
	}

	answer, err := r.agent.Invoke(ctx, question)
	if err != nil {
		return "", fmt.Errorf("resolve runs for %s: %w: %w", st.ExperimentAccession, domain.ErrAgentFailed, err)
	}
	st.AppendTranscript(answer)
	st.RunAccessions = domain.ParseRunAccessions(answer)

	if r.engine.metrics != nil {
		r.engine.metrics.RecordRunsResolved(len(st.RunAccessions))
	}
	r.logger.Info().Int("run_count", len(st.RunAccessions)).Msg("run accessions resolved")
	r.notify(StepResolveRuns, fmt.Sprintf("resolved %d run accessions", len(st.RunAccessions)))
	return SignalAdvance, nil
}

// persist writes the metadata row and the run links. Both writes are
// idempotent upserts; the run upsert reports how many links were new, the
// remainder being benign conflicts with rows from an earlier run.
func (r *run) persist(ctx context.Context) (Signal, error) {
	st := r.st
	if !r.engine.cfg.UseDatabase || r.engine.store == nil {
		r.logger.Info().Msg("database writes disabled, skipping persist")
		r.notify(StepPersist, "persist skipped")
		return SignalAdvance, nil
	}

	if _, err := r.engine.store.UpsertExperiment(ctx, st.Record()); err != nil {
		return "", fmt.Errorf("upsert metadata for %s: %w", st.ExperimentAccession, err)
	}
	if r.engine.metrics != nil {
		r.engine.metrics.RecordUpsert("srx_metadata")
	}

	inserted := 0
	if !r.engine.cfg.NoSRR && len(st.RunAccessions) > 0 {
		n, err := r.engine.store.UpsertRuns(ctx, st.ExperimentAccession, st.RunAccessions)
		if err != nil {
			return "", fmt.Errorf("upsert runs for %s: %w", st.ExperimentAccession, err)
		}
		inserted = n
		if r.engine.metrics != nil {
			r.engine.metrics.RecordUpserts("srx_srr", n)
			for i := n; i < len(st.RunAccessions); i++ {
				r.engine.metrics.RecordUpsertConflict("srx_srr")
			}
		}
	}

	r.logger.Info().
		Int("runs_inserted", inserted).
		Int("run_count", len(st.RunAccessions)).
		Msg("metadata persisted")
	r.notify(StepPersist, fmt.Sprintf("persisted metadata with %d new run links", inserted))
	return SignalAdvance, nil
}
