// Package main provides the entry point for the SRA metadata service HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/seqcore/sra-metadata-service/internal/agent"
	"github.com/seqcore/sra-metadata-service/internal/config"
	"github.com/seqcore/sra-metadata-service/internal/database"
	"github.com/seqcore/sra-metadata-service/internal/domain"
	"github.com/seqcore/sra-metadata-service/internal/entrez"
	"github.com/seqcore/sra-metadata-service/internal/events"
	"github.com/seqcore/sra-metadata-service/internal/llm"
	"github.com/seqcore/sra-metadata-service/internal/observability"
	"github.com/seqcore/sra-metadata-service/internal/repository"
	httpserver "github.com/seqcore/sra-metadata-service/internal/server/http"
	"github.com/seqcore/sra-metadata-service/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("sra-metadata-service server starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		migrator, err := database.NewMigrator(db, cfg.Database.MigrationPath, logger)
		if err != nil {
			return fmt.Errorf("create migrator: %w", err)
		}
		defer func() {
			if closeErr := migrator.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close migrator")
			}
		}()

		if err := migrator.Up(); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	// Create repositories.
	metadataRepo := repository.NewPgMetadataRepository(db)
	jobRepo := repository.NewPgJobRepository(db)

	// Prometheus metrics. Registration happens once here; the HTTP server
	// exposes them when metrics are enabled.
	metrics := observability.NewMetrics("sra_metadata")

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
	logger.Info().
		Str("provider", cfg.LLM.Provider).
		Str("model", llmClient.Model()).
		Msg("LLM client initialized")

	// Create the Entrez E-utilities client.
	entrezClient := entrez.New(entrez.Config{
		BaseURL:    cfg.Entrez.BaseURL,
		APIKey:     cfg.Entrez.APIKey,
		Email:      cfg.Entrez.Email,
		Tool:       cfg.Entrez.Tool,
		Timeout:    cfg.Entrez.Timeout,
		RateLimit:  cfg.Entrez.RateLimit,
		MaxRetries: cfg.Entrez.MaxRetries,
		Metrics:    metrics,
	})

	// Create the research agent factory: one session per Entrez record.
	agentFactory := agent.NewFactory(llmClient, entrezClient, logger, agent.Config{
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
		Metrics:        metrics,
	})

	// Create the extraction engine and batch orchestrator.
	wcfg := workflow.Config{
		MaxParallel:       cfg.Pipeline.MaxParallel,
		MaxSteps:          cfg.Pipeline.MaxSteps,
		UseDatabase:       cfg.Pipeline.UseDatabase,
		NoSRR:             cfg.Pipeline.NoSRR,
		ReprocessExisting: cfg.Pipeline.ReprocessExisting,
	}
	engine := workflow.NewEngine(
		func(db domain.Database, entrezID int64) workflow.Researcher {
			return agentFactory.Session(db, entrezID)
		},
		decoder,
		metadataRepo,
		logger,
		wcfg,
		workflow.WithMetrics(metrics),
	)

	// Create the Kafka publisher if configured. The orchestrator falls back
	// to a no-op publisher when events are disabled.
	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		kafkaPub := events.NewKafkaPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		defer func() {
			if closeErr := kafkaPub.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close kafka publisher")
			}
		}()
		publisher = kafkaPub
		logger.Info().
			Strs("brokers", cfg.Kafka.Brokers).
			Str("topic", cfg.Kafka.Topic).
			Msg("kafka publisher initialized")
	}

	orchestrator := workflow.NewOrchestrator(workflow.OrchestratorDeps{
		Runner:  engine,
		Store:   metadataRepo,
		Jobs:    jobRepo,
		Search:  entrezClient,
		Events:  publisher,
		Metrics: metrics,
	}, logger, wcfg)

	// Create the HTTP REST API server.
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MetricsPath:     metricsPath,
	}
	httpSrv := httpserver.NewServer(httpCfg, orchestrator, metadataRepo, jobRepo, db, logger)

	// Channel to collect server errors.
	errCh := make(chan error, 1)

	// Start HTTP server in background.
	go func() {
		logger.Info().
			Str("address", httpCfg.Address).
			Msg("HTTP server starting")
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsPath != "" {
		readyLog = readyLog.Str("metrics_path", metricsPath)
	}
	readyLog.Msg("sra-metadata-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down sra-metadata-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("sra-metadata-service shutdown complete")
	return nil
}
