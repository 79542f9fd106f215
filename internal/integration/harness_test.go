//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/neuracity/risk-index-service/internal/risk"
)

// startKafka launches a single-node Kafka broker in a container and returns
// its bootstrap address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("risk-index-test"),
	)
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve broker addresses")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic on the broker's controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err, "dial broker")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "resolve controller")

	controllerConn, err := kafkago.Dial("tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "dial controller")
	defer controllerConn.Close()

	require.NoError(t, controllerConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// rawEnvelope mirrors the JSON envelope collector services publish to the
// source topic.
type rawEnvelope struct {
	BlockID    string    `json:"block_id"`
	FactorType string    `json:"factor_type"`
	Data       any       `json:"data"`
	DataSource string    `json:"data_source"`
	MeasuredAt time.Time `json:"measured_at"`
}

// envelopePayload marshals one raw factor observation for publishing.
func envelopePayload(t *testing.T, blockID string, factor risk.Factor, data any, measuredAt time.Time) []byte {
	t.Helper()
	payload, err := json.Marshal(rawEnvelope{
		BlockID:    blockID,
		FactorType: string(factor),
		Data:       data,
		DataSource: "integration-test",
		MeasuredAt: measuredAt,
	})
	require.NoError(t, err)
	return payload
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
