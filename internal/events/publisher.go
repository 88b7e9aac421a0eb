// Package events publishes per-accession extraction outcomes to Kafka for
// downstream consumers. Publishing is best-effort: callers log delivery
// failures and move on, so event delivery never gates the pipeline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event types published by the extraction pipeline.
const (
	TypeExtractionCompleted = "extraction.completed"
	TypeExtractionFailed    = "extraction.failed"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultWriteTimeout = 10 * time.Second
)

// ExtractionEvent is the payload for extraction outcome events. EventID,
// Type, and OccurredAt are filled in by the publisher.
type ExtractionEvent struct {
	EventID      string    `json:"event_id"`
	Type         string    `json:"type"`
	Database     string    `json:"database"`
	EntrezID     int64     `json:"entrez_id"`
	SRXAccession string    `json:"srx_accession,omitempty"`
	Level        string    `json:"level,omitempty"`
	RunCount     int       `json:"run_count"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher broadcasts extraction outcomes.
type Publisher interface {
	// ExtractionCompleted publishes a successful extraction outcome.
	ExtractionCompleted(ctx context.Context, ev ExtractionEvent) error

	// ExtractionFailed publishes a failed extraction outcome.
	ExtractionFailed(ctx context.Context, ev ExtractionEvent) error

	// Close flushes buffered messages and releases the transport.
	Close() error
}

// Config holds Kafka connection settings for the publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic to publish extraction events to.
	Topic string
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int
	// BatchTimeout is the maximum time to wait for a batch to fill.
	BatchTimeout time.Duration
}

// messageWriter is the slice of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes extraction events to a Kafka topic. Messages are
// keyed by (database, entrez id) so outcomes for one record stay ordered
// within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher for the given brokers and topic.
func NewKafkaPublisher(cfg Config, logger zerolog.Logger) *KafkaPublisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: defaultWriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "events_publisher").Logger(),
	}
}

// ExtractionCompleted publishes a successful extraction outcome.
func (p *KafkaPublisher) ExtractionCompleted(ctx context.Context, ev ExtractionEvent) error {
	return p.publish(ctx, TypeExtractionCompleted, ev)
}

// ExtractionFailed publishes a failed extraction outcome.
func (p *KafkaPublisher) ExtractionFailed(ctx context.Context, ev ExtractionEvent) error {
	return p.publish(ctx, TypeExtractionFailed, ev)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType string, ev ExtractionEvent) error {
	ev.EventID = uuid.NewString()
	ev.Type = eventType
	ev.OccurredAt = time.Now().UTC()

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(MessageKey(ev.Database, ev.EntrezID)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", eventType, err)
	}

	p.logger.Debug().
		Str("event_type", eventType).
		Str("database", ev.Database).
		Int64("entrez_id", ev.EntrezID).
		Msg("published extraction event")
	return nil
}

// Close flushes buffered messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing events publisher")
	return p.writer.Close()
}

// MessageKey builds the partition key for one record's events.
func MessageKey(database string, entrezID int64) string {
	return fmt.Sprintf("%s:%d", database, entrezID)
}

// NopPublisher discards all events. Used when event publishing is disabled.
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// ExtractionCompleted discards the event.
func (NopPublisher) ExtractionCompleted(context.Context, ExtractionEvent) error { return nil }

// ExtractionFailed discards the event.
func (NopPublisher) ExtractionFailed(context.Context, ExtractionEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
