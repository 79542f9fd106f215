package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracity/risk-index-service/internal/risk"
)

func TestMapMessageToSample(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("BLK_40.7120_-74.0060"),
		Value:     []byte(`{"block_id":"BLK_40.7120_-74.0060"}`),
		Topic:     "raw-risk-measurements",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("collector-crime")},
		},
	}

	sample := mapMessageToSample(msg)

	assert.Equal(t, []byte("BLK_40.7120_-74.0060"), sample.Key)
	assert.JSONEq(t, `{"block_id":"BLK_40.7120_-74.0060"}`, string(sample.Value))
	assert.Equal(t, "raw-risk-measurements", sample.Topic)
	assert.Equal(t, 2, sample.Partition)
	assert.Equal(t, int64(42), sample.Offset)
	assert.Equal(t, now, sample.Timestamp)
	assert.Equal(t, "collector-crime", sample.Headers["source"])
	assert.Nil(t, sample.Commit)
}

func TestSerializeAlert(t *testing.T) {
	now := time.Date(2026, 8, 1, 15, 10, 0, 0, time.UTC)
	alert := risk.CategoryAlert{
		BlockID:            "BLK_40.7120_-74.0060",
		PreviousCategory:   risk.CategoryModerate,
		CurrentCategory:    risk.CategoryHigh,
		CompositeRiskIndex: 0.612,
		OccurredAt:         now,
	}

	msg, err := serializeAlert(alert)
	require.NoError(t, err)

	assert.Equal(t, []byte("BLK_40.7120_-74.0060"), msg.Key)
	assert.Contains(t, string(msg.Value), `"current_category":"high"`)
	assert.Contains(t, string(msg.Value), `"composite_risk_index":0.612`)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "current_category", msg.Headers[0].Key)
	assert.Equal(t, []byte("high"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}
