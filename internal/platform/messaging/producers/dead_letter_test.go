package producers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet-ledger/internal/config"
)

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	ctx := context.Background()
	dlqTopic := "wallet_transaction_events_dlq"

	t.Run("SuccessfulPublishToDLQ", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{
			logger:   testLogger(),
			writer:   mockWriter,
			dlqTopic: dlqTopic,
		}

		key := "original-key"
		originalValue := []byte(`{"data":"original_payload"}`)
		reason := "unmarshal failed"

		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 {
				return false
			}
			msg := msgs[0]
			if string(msg.Key) != key {
				return false
			}
			var payload map[string]string
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				return false
			}
			return payload["original_key"] == key &&
				payload["original_value"] == string(originalValue) &&
				payload["dlq_reason"] == reason &&
				payload["timestamp"] != ""
		})).Return(nil).Once()

		err := producer.PublishToDLQ(ctx, key, originalValue, reason)
		require.NoError(t, err)
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterErrorIsWrapped", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{
			logger:   testLogger(),
			writer:   mockWriter,
			dlqTopic: dlqTopic,
		}

		writerErr := errors.New("kafka DLQ write error")
		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := producer.PublishToDLQ(ctx, "key", []byte("payload"), "reason")
		require.Error(t, err)
		assert.ErrorIs(t, err, writerErr)
		mockWriter.AssertExpectations(t)
	})

	t.Run("NilProducerReturnsError", func(t *testing.T) {
		var producer *DLQProducer
		err := producer.PublishToDLQ(ctx, "key", []byte("payload"), "reason")
		assert.Error(t, err)
	})

	t.Run("NilProducerCloseIsSafe", func(t *testing.T) {
		var producer *DLQProducer
		assert.NoError(t, producer.Close())
	})
}

func TestNewDLQProducer_DisabledWithoutTopic(t *testing.T) {
	producer, err := NewDLQProducer(context.Background(), testLogger(), &config.KafkaConfig{
		Brokers:  "localhost:9092",
		DLQTopic: "",
	})
	assert.NoError(t, err)
	assert.Nil(t, producer)
}
