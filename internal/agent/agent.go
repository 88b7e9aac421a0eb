// Package agent implements the research sub-agent used by the extraction
// workflow. A Session answers free-text questions about one Entrez record,
// using the record's esummary and efetch documents as its only context. The
// workflow asks it for metadata evidence, experiment accessions, and run
// accessions.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/seqcore/sra-metadata-service/internal/domain"
	"github.com/seqcore/sra-metadata-service/internal/entrez"
	"github.com/seqcore/sra-metadata-service/internal/llm"
)

const (
	// DefaultMaxConcurrency caps concurrent LLM calls within one session.
	DefaultMaxConcurrency = 3

	// defaultDocumentLimit caps each fetched document in runes. Fetch
	// responses can reach megabytes for large submissions; everything past
	// the cap is noise for a single-record question.
	defaultDocumentLimit = 50000

	// llmOperation labels this package's LLM calls in metrics.
	llmOperation = "research"
)

// systemPrompt frames every sub-agent exchange.
const systemPrompt = `You are a research assistant helping a bioinformatics team characterize sequencing datasets.
Answer the question using only the NCBI Entrez documents provided with it.
Quote or restate explicit statements from the documents as evidence; do not infer beyond what they say.
When two parts of the record corroborate an answer, mention both.
If the documents do not contain the answer, state that plainly.`

// Researcher answers free-text questions about one Entrez record.
type Researcher interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// DocumentFetcher supplies the raw Entrez documents for a record.
// *entrez.Client satisfies it.
type DocumentFetcher interface {
	ESummary(ctx context.Context, db domain.Database, id int64) (string, error)
	EFetch(ctx context.Context, db domain.Database, id int64) (string, error)
}

// MetricsRecorder receives LLM call instrumentation. *observability.Metrics
// satisfies it; a nil recorder disables instrumentation.
type MetricsRecorder interface {
	RecordLLMRequest(operation, model string, durationSeconds float64, inputTokens, outputTokens int)
	RecordLLMRequestFailed(operation, model, errorType string)
}

// Config holds sub-agent settings. It is defined here to avoid importing the
// config package.
type Config struct {
	// MaxConcurrency caps concurrent LLM calls within one session.
	// Defaults to DefaultMaxConcurrency if zero.
	MaxConcurrency int

	// MaxAnswerTokens bounds each answer; zero uses the provider default.
	MaxAnswerTokens int

	// ItemTextLimit caps per-Item text in summary documents.
	// Defaults to entrez.DefaultItemTextLimit if zero.
	ItemTextLimit int

	// Metrics receives instrumentation. Optional.
	Metrics MetricsRecorder
}

// Factory creates one research session per Entrez record.
type Factory struct {
	client llm.Client
	docs   DocumentFetcher
	logger zerolog.Logger
	cfg    Config
}

// NewFactory creates a session factory over the given LLM client and
// document fetcher.
func NewFactory(client llm.Client, docs DocumentFetcher, logger zerolog.Logger, cfg Config) *Factory {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if cfg.ItemTextLimit <= 0 {
		cfg.ItemTextLimit = entrez.DefaultItemTextLimit
	}
	return &Factory{
		client: client,
		docs:   docs,
		logger: logger,
		cfg:    cfg,
	}
}

// Session creates a research session for one Entrez record. The record's
// documents are fetched on first use and reused for every question.
func (f *Factory) Session(database domain.Database, entrezID int64) *Session {
	return &Session{
		factory:  f,
		database: database,
		entrezID: entrezID,
		logger: f.logger.With().
			Str("database", string(database)).
			Int64("entrez_id", entrezID).
			Logger(),
		sem: semaphore.NewWeighted(int64(f.cfg.MaxConcurrency)),
	}
}

// Session answers questions about a single Entrez record. It is safe for
// concurrent use; concurrent questions share the record's document context
// and are bounded by the configured concurrency limit.
type Session struct {
	factory  *Factory
	database domain.Database
	entrezID int64
	logger   zerolog.Logger
	sem      *semaphore.Weighted

	mu         sync.Mutex
	contextDoc string
}

// Compile-time check that Session implements Researcher.
var _ Researcher = (*Session)(nil)

// Invoke answers one question about the session's record.
func (s *Session) Invoke(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", domain.NewValidationError("question", "question must not be empty")
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire agent slot: %w", err)
	}
	defer s.sem.Release(1)

	doc, err := s.documents(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch entrez context: %w", err)
	}

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: doc + "\n\n# Question\n" + question},
		},
		MaxTokens: s.factory.cfg.MaxAnswerTokens,
	}

	start := time.Now()
	resp, err := s.factory.client.Complete(ctx, req)
	if err != nil {
		s.recordFailure(err)
		return "", fmt.Errorf("research completion: %w", err)
	}
	if m := s.factory.cfg.Metrics; m != nil {
		m.RecordLLMRequest(llmOperation, resp.Model, time.Since(start).Seconds(),
			resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}

	return strings.TrimSpace(resp.Content), nil
}

// documents returns the combined record context, fetching it on first use.
// Only a successful fetch is cached, so a transient Entrez failure does not
// poison the session.
func (s *Session) documents(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contextDoc != "" {
		return s.contextDoc, nil
	}

	summary, err := s.factory.docs.ESummary(ctx, s.database, s.entrezID)
	if err != nil {
		return "", fmt.Errorf("esummary: %w", err)
	}
	summary = entrez.TruncateItemValues(summary, s.factory.cfg.ItemTextLimit)

	var b strings.Builder
	fmt.Fprintf(&b, "# Entrez esummary (db=%s, id=%d)\n%s\n", s.database, s.entrezID, capText(summary, defaultDocumentLimit))

	// The fetch document is richer but optional; the summary alone is enough
	// context to answer most questions.
	fetched, err := s.factory.docs.EFetch(ctx, s.database, s.entrezID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("efetch failed, continuing with esummary context only")
	} else if strings.TrimSpace(fetched) != "" {
		fmt.Fprintf(&b, "\n# Entrez efetch (db=%s, id=%d)\n%s\n", s.database, s.entrezID, capText(fetched, defaultDocumentLimit))
	}

	s.contextDoc = b.String()
	s.logger.Debug().Int("context_bytes", len(s.contextDoc)).Msg("entrez context assembled")
	return s.contextDoc, nil
}

// recordFailure records a failed LLM call when metrics are configured.
func (s *Session) recordFailure(err error) {
	m := s.factory.cfg.Metrics
	if m == nil {
		return
	}
	errorType := "error"
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		errorType = fmt.Sprintf("status_%d", apiErr.StatusCode)
	}
	m.RecordLLMRequestFailed(llmOperation, s.factory.client.Model(), errorType)
}

// capText truncates s to max runes, marking the cut.
func capText(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "...[truncated]"
}
