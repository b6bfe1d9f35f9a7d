package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fixedEvent() *Event {
	return &Event{
		ID:           "3f7c1d0e-6c1b-4d59-9a40-2b8d1c7f0a11",
		Type:         WalletCredited,
		StudentID:    42,
		Amount:       "100.00",
		BalanceAfter: "150.00",
		Reference:    "TXN-01HZX3M4K5",
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRedisPublisher_Publish(t *testing.T) {
	db, mock := redismock.NewClientMock()
	publisher := NewRedisPublisher(db, "", zap.NewNop())

	t.Run("publishes on default channel", func(t *testing.T) {
		event := fixedEvent()
		payload, err := json.Marshal(event)
		require.NoError(t, err)

		mock.ExpectPublish(DefaultChannel, payload).SetVal(1)

		err = publisher.Publish(context.Background(), event)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis failure is returned", func(t *testing.T) {
		event := fixedEvent()
		payload, err := json.Marshal(event)
		require.NoError(t, err)

		mock.ExpectPublish(DefaultChannel, payload).SetErr(errors.New("connection refused"))

		err = publisher.Publish(context.Background(), event)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to publish event")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	t.Run("keys messages by student", func(t *testing.T) {
		w := &fakeWriter{}
		publisher := &KafkaPublisher{writer: w, logger: zap.NewNop()}

		err := publisher.Publish(context.Background(), fixedEvent())
		require.NoError(t, err)
		require.Len(t, w.msgs, 1)

		assert.Equal(t, "42", string(w.msgs[0].Key))
		assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
		assert.Equal(t, string(WalletCredited), string(w.msgs[0].Headers[0].Value))

		var decoded Event
		require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
		assert.Equal(t, "150.00", decoded.BalanceAfter)
	})

	t.Run("write error is wrapped", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("leader not available")}
		publisher := &KafkaPublisher{writer: w, logger: zap.NewNop()}

		err := publisher.Publish(context.Background(), fixedEvent())
		assert.ErrorContains(t, err, "leader not available")
	})

	t.Run("close closes writer", func(t *testing.T) {
		w := &fakeWriter{}
		publisher := &KafkaPublisher{writer: w, logger: zap.NewNop()}
		assert.NoError(t, publisher.Close())
		assert.True(t, w.closed)
	})
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(WithdrawalApproved, 7)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, WithdrawalApproved, event.Type)
	assert.Equal(t, int64(7), event.StudentID)
	assert.False(t, event.Timestamp.IsZero())
}
