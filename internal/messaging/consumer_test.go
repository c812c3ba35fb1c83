package messaging_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type clickEvent struct {
	Code    string `json:"code"    cbor:"code"`
	Country string `json:"country" cbor:"country"`
}

type channelSubscriber struct {
	msgs         chan *message.Message
	subscribeErr error
	once         sync.Once
}

func newChannelSubscriber() *channelSubscriber {
	return &channelSubscriber{msgs: make(chan *message.Message, 10)}
}

func (s *channelSubscriber) Subscribe(_ context.Context, _ string) (<-chan *message.Message, error) {
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}

	return s.msgs, nil
}

func (s *channelSubscriber) Close() error {
	s.once.Do(func() { close(s.msgs) })

	return nil
}

func startConsumer(
	t *testing.T,
	sub *channelSubscriber,
	handler messaging.Handler[clickEvent],
	opts ...messaging.ConsumerOption,
) *messaging.Consumer[clickEvent] {
	t.Helper()

	consumer := messaging.NewConsumer(sub, "link.clicked", handler, zap.NewNop(), opts...)
	require.NoError(t, consumer.Start(context.Background()))

	t.Cleanup(func() { _ = consumer.Shutdown() })

	return consumer
}

// outcome waits for msg to be acked or nacked.
func outcome(t *testing.T, msg *message.Message) string {
	t.Helper()

	select {
	case <-msg.Acked():
		return "ack"
	case <-msg.Nacked():
		return "nack"
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for ack or nack")

		return ""
	}
}

func TestConsumer_Lifecycle(t *testing.T) {
	t.Run("reports its topic", func(t *testing.T) {
		consumer := startConsumer(t, newChannelSubscriber(), func(context.Context, *clickEvent) error { return nil })

		assert.Equal(t, "link.clicked", consumer.Topic())
	})

	t.Run("start fails when subscribe fails and shutdown still returns", func(t *testing.T) {
		sub := &channelSubscriber{subscribeErr: errors.New("subscribe error")}
		consumer := messaging.NewConsumer(sub, "link.clicked",
			func(context.Context, *clickEvent) error { return nil }, zap.NewNop())

		require.Error(t, consumer.Start(context.Background()))
		assert.NoError(t, consumer.Shutdown())
	})

	t.Run("stops when the subscriber channel closes", func(t *testing.T) {
		sub := newChannelSubscriber()
		consumer := messaging.NewConsumer(sub, "link.clicked",
			func(context.Context, *clickEvent) error { return nil }, zap.NewNop())
		require.NoError(t, consumer.Start(context.Background()))

		require.NoError(t, sub.Close())
		assert.NoError(t, consumer.Shutdown())
	})
}

func TestConsumer_Decoding(t *testing.T) {
	t.Run("decodes json payloads without codec metadata", func(t *testing.T) {
		sub := newChannelSubscriber()
		received := make(chan clickEvent, 1)
		startConsumer(t, sub, func(_ context.Context, e *clickEvent) error {
			received <- *e

			return nil
		})

		msg := message.NewMessage(uuid.NewString(), []byte(`{"code":"abc","country":"NL"}`))
		sub.msgs <- msg

		require.Equal(t, "ack", outcome(t, msg))
		assert.Equal(t, clickEvent{Code: "abc", Country: "NL"}, <-received)
	})

	t.Run("decodes cbor payloads when the decoder is registered", func(t *testing.T) {
		codec, err := kv.NewCBORCodec()
		require.NoError(t, err)

		sub := newChannelSubscriber()
		received := make(chan clickEvent, 1)
		startConsumer(t, sub, func(_ context.Context, e *clickEvent) error {
			received <- *e

			return nil
		}, messaging.WithDecoders(codec))

		payload, err := codec.Marshal(clickEvent{Code: "xyz"})
		require.NoError(t, err)

		msg := message.NewMessage(uuid.NewString(), payload)
		msg.Metadata.Set(messaging.MetadataCodec, kv.CodecCBOR)
		sub.msgs <- msg

		require.Equal(t, "ack", outcome(t, msg))
		assert.Equal(t, "xyz", (<-received).Code)
	})

	t.Run("drops payloads it cannot decode", func(t *testing.T) {
		sub := newChannelSubscriber()
		var calls atomic.Int32
		startConsumer(t, sub, func(context.Context, *clickEvent) error {
			calls.Add(1)

			return nil
		})

		garbage := message.NewMessage(uuid.NewString(), []byte("invalid json"))
		unknown := message.NewMessage(uuid.NewString(), []byte(`{}`))
		unknown.Metadata.Set(messaging.MetadataCodec, "msgpack")

		sub.msgs <- garbage
		sub.msgs <- unknown

		assert.Equal(t, "ack", outcome(t, garbage))
		assert.Equal(t, "ack", outcome(t, unknown))
		assert.Zero(t, calls.Load())
	})
}

func TestConsumer_Handling(t *testing.T) {
	t.Run("passes the message id to the handler", func(t *testing.T) {
		sub := newChannelSubscriber()
		ids := make(chan string, 1)
		startConsumer(t, sub, func(ctx context.Context, _ *clickEvent) error {
			ids <- messaging.EventID(ctx)

			return nil
		})

		msgID := uuid.NewString()
		sub.msgs <- message.NewMessage(msgID, []byte(`{"code":"abc"}`))

		select {
		case got := <-ids:
			assert.Equal(t, msgID, got)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for handler")
		}
	})

	t.Run("retries a failing handler before acking", func(t *testing.T) {
		sub := newChannelSubscriber()
		var calls atomic.Int32
		startConsumer(t, sub, func(context.Context, *clickEvent) error {
			if calls.Add(1) < 3 {
				return errors.New("store busy")
			}

			return nil
		}, messaging.WithHandlerAttempts(3))

		msg := message.NewMessage(uuid.NewString(), []byte(`{"code":"abc"}`))
		sub.msgs <- msg

		assert.Equal(t, "ack", outcome(t, msg))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("nacks once attempts are exhausted", func(t *testing.T) {
		sub := newChannelSubscriber()
		var calls atomic.Int32
		startConsumer(t, sub, func(context.Context, *clickEvent) error {
			calls.Add(1)

			return errors.New("store down")
		}, messaging.WithHandlerAttempts(2))

		msg := message.NewMessage(uuid.NewString(), []byte(`{"code":"abc"}`))
		sub.msgs <- msg

		assert.Equal(t, "nack", outcome(t, msg))
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestEventID(t *testing.T) {
	t.Run("is empty outside a consumer", func(t *testing.T) {
		assert.Empty(t, messaging.EventID(context.Background()))
	})

	t.Run("round trips through the context", func(t *testing.T) {
		assert.Equal(t, "abc", messaging.EventID(messaging.WithEventID(context.Background(), "abc")))
	})
}
