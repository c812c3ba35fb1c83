package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	topic      string
	messages   []*message.Message
	publishErr error
	closeErr   error
}

func (p *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	if p.publishErr != nil {
		return p.publishErr
	}

	p.topic = topic
	p.messages = append(p.messages, msgs...)

	return nil
}

func (p *recordingPublisher) Close() error {
	return p.closeErr
}

type requestIDKey struct{}

func TestNewPublishFunc(t *testing.T) {
	t.Run("encodes json and stamps metadata", func(t *testing.T) {
		pub := &recordingPublisher{}
		publish := messaging.NewPublishFunc[clickEvent](pub, "link.clicked")

		require.NoError(t, publish(context.Background(), &clickEvent{Code: "abc"}))

		require.Len(t, pub.messages, 1)
		msg := pub.messages[0]
		assert.Equal(t, "link.clicked", pub.topic)
		assert.JSONEq(t, `{"code":"abc","country":""}`, string(msg.Payload))
		assert.Equal(t, "link.clicked", msg.Metadata.Get(messaging.MetadataEventType))
		assert.Equal(t, kv.CodecJSON, msg.Metadata.Get(messaging.MetadataCodec))

		_, err := time.Parse(time.RFC3339Nano, msg.Metadata.Get(messaging.MetadataPublishedAt))
		assert.NoError(t, err)
	})

	t.Run("uses the configured codec", func(t *testing.T) {
		codec, err := kv.NewCBORCodec()
		require.NoError(t, err)

		pub := &recordingPublisher{}
		publish := messaging.NewPublishFunc[clickEvent](pub, "link.clicked", messaging.WithCodec(codec))

		require.NoError(t, publish(context.Background(), &clickEvent{Code: "abc"}))

		var decoded clickEvent
		require.NoError(t, codec.Unmarshal(pub.messages[0].Payload, &decoded))
		assert.Equal(t, "abc", decoded.Code)
		assert.Equal(t, kv.CodecCBOR, pub.messages[0].Metadata.Get(messaging.MetadataCodec))
	})

	t.Run("sets the correlation id from the context", func(t *testing.T) {
		pub := &recordingPublisher{}
		publish := messaging.NewPublishFunc[clickEvent](pub, "link.clicked",
			messaging.WithCorrelationID(func(ctx context.Context) string {
				id, _ := ctx.Value(requestIDKey{}).(string)

				return id
			}))

		ctx := context.WithValue(context.Background(), requestIDKey{}, "req-42")
		require.NoError(t, publish(ctx, &clickEvent{Code: "abc"}))
		require.NoError(t, publish(context.Background(), &clickEvent{Code: "def"}))

		assert.Equal(t, "req-42", middleware.MessageCorrelationID(pub.messages[0]))
		assert.Empty(t, middleware.MessageCorrelationID(pub.messages[1]))
	})

	t.Run("returns error when publish fails", func(t *testing.T) {
		pub := &recordingPublisher{publishErr: errors.New("publish error")}
		publish := messaging.NewPublishFunc[clickEvent](pub, "link.clicked")

		assert.Error(t, publish(context.Background(), &clickEvent{Code: "abc"}))
	})
}

func TestPublishAndConsume(t *testing.T) {
	t.Run("delivers typed events over an in-process channel", func(t *testing.T) {
		pubsub := gochannel.NewGoChannel(gochannel.Config{}, messaging.NewZapLogger(zap.NewNop()))
		defer func() { _ = pubsub.Close() }()

		received := make(chan clickEvent, 1)
		consumer := messaging.NewConsumer(pubsub, "link.clicked", func(_ context.Context, e *clickEvent) error {
			received <- *e

			return nil
		}, zap.NewNop())
		require.NoError(t, consumer.Start(context.Background()))

		defer func() { _ = consumer.Shutdown() }()

		publish := messaging.NewPublishFunc[clickEvent](pubsub, "link.clicked")
		require.NoError(t, publish(context.Background(), &clickEvent{Code: "abc", Country: "DE"}))

		select {
		case got := <-received:
			assert.Equal(t, clickEvent{Code: "abc", Country: "DE"}, got)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for event")
		}
	})
}

func TestPublisherGroup(t *testing.T) {
	t.Run("exposes and closes the publisher", func(t *testing.T) {
		pub := &recordingPublisher{}
		group := messaging.NewPublisherGroup(pub)

		assert.Same(t, pub, group.Publisher())
		assert.NoError(t, group.Shutdown())
	})

	t.Run("returns error when close fails", func(t *testing.T) {
		group := messaging.NewPublisherGroup(&recordingPublisher{closeErr: errors.New("close error")})

		assert.Error(t, group.Shutdown())
	})
}
