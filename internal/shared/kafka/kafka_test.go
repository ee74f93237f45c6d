package kafka

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct{ msgs []kafka.Message }

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func TestBrokerList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, brokerList(" a:9092, b:9092,,"))
	assert.Nil(t, brokerList(""))
}

func TestForwardDLQKeepsPayloadAndAddsReason(t *testing.T) {
	w := &captureWriter{}
	orig := kafka.Message{Topic: "bet_placed", Key: []byte("k"), Value: []byte(`{"a":1}`)}

	require.NoError(t, ForwardDLQ(context.Background(), w, orig, "beacon unavailable"))
	require.Len(t, w.msgs, 1)
	got := w.msgs[0]
	assert.Equal(t, orig.Key, got.Key)
	assert.Equal(t, orig.Value, got.Value)
	require.Len(t, got.Headers, 2)
	assert.Equal(t, "dlq_reason", got.Headers[0].Key)
	assert.Equal(t, []byte("beacon unavailable"), got.Headers[0].Value)
	assert.Equal(t, []byte("bet_placed"), got.Headers[1].Value)
}
