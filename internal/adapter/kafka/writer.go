package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/forest-data-etl/internal/config"
	"github.com/couchcryptid/forest-data-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes canonical forest records to a Kafka topic.
// It implements pipeline.RecordSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch publishes every record of one run in a single WriteMessages call.
// Records are keyed by forest name so a compacted topic keeps the latest
// state per forest.
func (w *Writer) LoadBatch(ctx context.Context, runID string, records []domain.CanonicalForestRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(runID, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	w.logger.Debug("records published", "run_id", runID, "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a CanonicalForestRecord into a Kafka message.
func serializeToMessage(runID string, rec domain.CanonicalForestRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize forest record %q: %w", rec.Name, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.Name),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "ban_status", Value: []byte(rec.BanStatus)},
			{Key: "closure_status", Value: []byte(rec.ClosureStatus)},
		},
	}, nil
}
