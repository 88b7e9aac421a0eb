// Package main provides the srx-info CLI: one-shot metadata extraction for a
// batch of Entrez identifiers, printed as per-step progress and final
// summaries. Identifiers come from positional arguments, a CSV file, or an
// Entrez search expression.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/seqcore/sra-metadata-service/internal/agent"
	"github.com/seqcore/sra-metadata-service/internal/config"
	"github.com/seqcore/sra-metadata-service/internal/database"
	"github.com/seqcore/sra-metadata-service/internal/domain"
	"github.com/seqcore/sra-metadata-service/internal/entrez"
	"github.com/seqcore/sra-metadata-service/internal/llm"
	"github.com/seqcore/sra-metadata-service/internal/observability"
	"github.com/seqcore/sra-metadata-service/internal/repository"
	"github.com/seqcore/sra-metadata-service/internal/workflow"
)

// dateLayout is the format accepted by the -min-date and -max-date flags.
const dateLayout = "2006-01-02"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration first so flags can default to the configured values.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var (
		databaseFlag  = flag.String("database", "sra", "Entrez database the identifiers belong to (sra or gds)")
		csvPath       = flag.String("csv", "", "CSV file with an entrez_id column")
		query         = flag.String("query", "", "Entrez search expression; matching identifiers are extracted")
		limit         = flag.Int("limit", 100, "maximum identifiers a -query search may yield")
		minDate       = flag.String("min-date", "", "restrict -query matches to records published on or after this date (YYYY-MM-DD)")
		maxDate       = flag.String("max-date", "", "restrict -query matches to records published on or before this date (YYYY-MM-DD)")
		maxParallel   = flag.Int("max-parallel", cfg.Pipeline.MaxParallel, "maximum accessions processed concurrently")
		maxConcurrent = flag.Int("max-concurrency", cfg.Pipeline.MaxConcurrency, "maximum concurrent LLM calls per accession")
		maxSteps      = flag.Int("max-steps", cfg.Pipeline.MaxSteps, "maximum graph steps per accession")
		useDatabase   = flag.Bool("use-database", cfg.Pipeline.UseDatabase, "persist extracted metadata to PostgreSQL")
		noSRR         = flag.Bool("no-srr", cfg.Pipeline.NoSRR, "skip persisting run accessions")
		reprocess     = flag.Bool("reprocess-existing", cfg.Pipeline.ReprocessExisting, "re-extract identifiers that already have metadata rows")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [entrez_id ...]\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Extracts SRA experiment metadata for the given Entrez identifiers,")
		fmt.Fprintln(flag.CommandLine.Output(), "taken from positional arguments, -csv, or a -query search.")
		fmt.Fprintln(flag.CommandLine.Output(), "\nFlags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	db := domain.Database(strings.ToLower(strings.TrimSpace(*databaseFlag)))
	if !db.Valid() {
		return fmt.Errorf("unknown database %q: expected sra or gds", *databaseFlag)
	}

	entrezIDs, err := resolveInputIDs(*csvPath, *query, flag.Args())
	if err != nil {
		return err
	}

	// Progress lines and summaries go to stdout; keep logs on stderr.
	logCfg := observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     "stderr",
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	}
	logger := observability.NewLogger(logCfg).With().Str("component", "srx-info").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL only when persistence or skip filtering needs it.
	var store repository.MetadataRepository
	if *useDatabase {
		pg, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pg.Close()
		store = repository.NewPgMetadataRepository(pg)
	}

	// Create the LLM client and the structured-output decoder.
	llmClient, err := llm.NewClient(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	decoder := llm.NewDecoder(llmClient, llm.NewDecodeRetryPolicy(cfg.LLM.DecodeMaxAttempts))

	entrezClient := entrez.New(entrez.Config{
		BaseURL:    cfg.Entrez.BaseURL,
		APIKey:     cfg.Entrez.APIKey,
		Email:      cfg.Entrez.Email,
		Tool:       cfg.Entrez.Tool,
		Timeout:    cfg.Entrez.Timeout,
		RateLimit:  cfg.Entrez.RateLimit,
		MaxRetries: cfg.Entrez.MaxRetries,
	})

	agentFactory := agent.NewFactory(llmClient, entrezClient, logger, agent.Config{
		MaxConcurrency: *maxConcurrent,
	})

	wcfg := workflow.Config{
		MaxParallel:       *maxParallel,
		MaxSteps:          *maxSteps,
		UseDatabase:       *useDatabase,
		NoSRR:             *noSRR,
		ReprocessExisting: *reprocess,
	}
	engine := workflow.NewEngine(
		func(db domain.Database, entrezID int64) workflow.Researcher {
			return agentFactory.Session(db, entrezID)
		},
		decoder,
		store,
		logger,
		wcfg,
		workflow.WithProgress(func(entrezID int64, step workflow.Step, detail string) {
			fmt.Printf("[%d] %s: %s\n", entrezID, step, detail)
		}),
	)

	orchestrator := workflow.NewOrchestrator(workflow.OrchestratorDeps{
		Runner: engine,
		Store:  store,
		Search: entrezClient,
	}, logger, wcfg)

	// A -query search resolves the identifiers to extract.
	if *query != "" {
		search := workflow.DatasetSearch{Database: db, Query: *query, Limit: *limit}
		if search.MinDate, err = parseDateFlag("min-date", *minDate); err != nil {
			return err
		}
		if search.MaxDate, err = parseDateFlag("max-date", *maxDate); err != nil {
			return err
		}
		entrezIDs, err = orchestrator.FindDatasets(ctx, search)
		if err != nil {
			return fmt.Errorf("dataset search: %w", err)
		}
		if len(entrezIDs) == 0 {
			fmt.Println("no datasets matched the query")
			return nil
		}
		fmt.Printf("query matched %d identifiers\n", len(entrezIDs))
	}

	batch, err := orchestrator.ProcessBatch(ctx, db, entrezIDs)
	if err != nil {
		return err
	}

	for _, res := range batch.Results {
		fmt.Println()
		fmt.Println(res.Summary)
	}
	for _, failure := range batch.Failures {
		fmt.Fprintf(os.Stderr, "failed %d: %v\n", failure.EntrezID, failure.Err)
	}
	fmt.Printf("\n%d extracted, %d skipped, %d failed (of %d)\n",
		batch.Completed, batch.Skipped, batch.Failed, batch.Total)

	if batch.Failed > 0 && batch.Completed == 0 && batch.Skipped == 0 {
		return fmt.Errorf("all %d extractions failed", batch.Failed)
	}
	return nil
}

// resolveInputIDs picks the identifier source: a CSV file, a pending -query
// search (empty result now, resolved later), or positional arguments.
func resolveInputIDs(csvPath, query string, args []string) ([]int64, error) {
	sources := 0
	if csvPath != "" {
		sources++
	}
	if query != "" {
		sources++
	}
	if len(args) > 0 {
		sources++
	}
	if sources == 0 {
		flag.Usage()
		return nil, fmt.Errorf("no identifiers: pass positional entrez IDs, -csv, or -query")
	}
	if sources > 1 {
		return nil, fmt.Errorf("conflicting inputs: use only one of positional entrez IDs, -csv, or -query")
	}

	switch {
	case query != "":
		return nil, nil
	case csvPath != "":
		return readEntrezCSV(csvPath)
	default:
		ids := make([]int64, 0, len(args))
		for _, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid entrez ID %q: expected a positive integer", arg)
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
}

// readEntrezCSV reads identifiers from the entrez_id column of a CSV file.
// Rows with an empty cell are skipped.
func readEntrezCSV(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := -1
	for i, name := range header {
		name = strings.TrimPrefix(strings.TrimSpace(name), "﻿")
		if strings.EqualFold(name, "entrez_id") {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, fmt.Errorf("CSV %s has no entrez_id column", path)
	}

	var ids []int64
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}
		if col >= len(record) {
			continue
		}
		cell := strings.TrimSpace(record[col])
		if cell == "" {
			continue
		}
		id, err := strconv.ParseInt(cell, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("CSV line %d: invalid entrez ID %q", line, cell)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("CSV %s contains no entrez IDs", path)
	}
	return ids, nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s %q: expected YYYY-MM-DD", name, value)
	}
	return &t, nil
}
