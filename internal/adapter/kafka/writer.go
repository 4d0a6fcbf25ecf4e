package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/agro-monitor/internal/config"
	"github.com/couchcryptid/agro-monitor/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes each assessment as one JSON message keyed by polygon, so
// a partition holds the ordered history of one field.
// It implements pipeline.Loader.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured assessments topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Load serializes and publishes the assessment.
func (w *Writer) Load(ctx context.Context, a domain.Assessment) error {
	msg, err := serializeToMessage(a)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish assessment: %w", err)
	}
	w.logger.Debug("assessment published", "analysis_id", a.Analysis.ID, "bytes", len(msg.Value))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Assessment into a Kafka message.
func serializeToMessage(a domain.Assessment) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.Analysis.PolygonID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "analysis_id", Value: []byte(a.Analysis.ID)},
			{Key: "urgency", Value: []byte(a.Analysis.Irrigation.Urgency)},
			{Key: "score", Value: []byte(strconv.Itoa(a.Analysis.Irrigation.Score))},
			{Key: "analyzed_at", Value: []byte(a.Analysis.AnalyzedAt.Format(time.RFC3339))},
		},
	}, nil
}
