package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/drift-batch/internal/config"
	"github.com/couchcryptid/drift-batch/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes run results to a Kafka topic.
// It implements batch.ResultSink.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured result topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes a run result and writes it keyed by identifier, so all
// results for one tag land on the same partition.
func (w *Writer) Publish(ctx context.Context, result domain.RunResult) error {
	msg, err := serializeToMessage(result)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish run result for %s: %w", result.Identifier, err)
	}
	w.logger.Debug("run result published", "identifier", result.Identifier, "batch_id", result.BatchID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a RunResult into a Kafka message.
func serializeToMessage(result domain.RunResult) (kafkago.Message, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run result: %w", err)
	}
	status := "succeeded"
	if !result.Succeeded() {
		status = "failed"
	}
	return kafkago.Message{
		Key:   []byte(result.Identifier),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "batch_id", Value: []byte(result.BatchID)},
			{Key: "status", Value: []byte(status)},
			{Key: "row", Value: []byte(strconv.Itoa(result.Row))},
		},
	}, nil
}
