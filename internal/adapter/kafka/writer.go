package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/neuracity/risk-index-service/internal/config"
	"github.com/neuracity/risk-index-service/internal/risk"
)

// Writer publishes category escalation alerts to the alert topic.
// It implements batch.AlertSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAlerts serializes and publishes category escalations in a single
// WriteMessages call for efficiency.
func (w *Writer) PublishAlerts(ctx context.Context, alerts []risk.CategoryAlert) error {
	if len(alerts) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeAlert(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	return w.writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeAlert marshals a CategoryAlert into a Kafka message keyed by
// block, so alerts for one block stay ordered within a partition.
func serializeAlert(alert risk.CategoryAlert) (kafkago.Message, error) {
	data, err := json.Marshal(alert)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize category alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(alert.BlockID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "current_category", Value: []byte(alert.CurrentCategory)},
			{Key: "occurred_at", Value: []byte(alert.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
