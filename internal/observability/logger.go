package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	// Configure time format
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	// Use console writer for pretty output in development
	if strings.ToLower(cfg.Format) == "console" || strings.ToLower(cfg.Format) == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	// Create logger with context
	logger := zerolog.New(output).With().Timestamp()

	// Add caller information if configured
	if cfg.AddSource {
		logger = logger.Caller()
	}

	// Build the final logger
	log := logger.Logger()

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	log = log.Level(level)

	return log
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithJobContext adds extraction job fields to a logger.
func WithJobContext(logger zerolog.Logger, jobID, database string) zerolog.Logger {
	return logger.With().
		Str("job_id", jobID).
		Str("database", database).
		Logger()
}

// WithAccessionContext adds experiment identity fields to a logger.
func WithAccessionContext(logger zerolog.Logger, entrezID int64, accession string) zerolog.Logger {
	return logger.With().
		Int64("entrez_id", entrezID).
		Str("srx_accession", accession).
		Logger()
}

// WithStepContext adds workflow step fields to a logger.
func WithStepContext(logger zerolog.Logger, step string, stepCount int) zerolog.Logger {
	return logger.With().
		Str("step", step).
		Int("step_count", stepCount).
		Logger()
}

// WithLevelContext adds metadata level fields to a logger.
func WithLevelContext(logger zerolog.Logger, level string, attempt int) zerolog.Logger {
	return logger.With().
		Str("level", level).
		Int("attempt", attempt).
		Logger()
}

// WithEntrezContext adds E-utilities request fields to a logger.
func WithEntrezContext(logger zerolog.Logger, endpoint, database string) zerolog.Logger {
	return logger.With().
		Str("endpoint", endpoint).
		Str("database", database).
		Logger()
}
