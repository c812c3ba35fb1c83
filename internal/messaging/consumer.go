package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/serroba/shortlinks/internal/kv"
	"go.uber.org/zap"
)

const handlerBackoff = 10 * time.Millisecond

// Handler processes a single event.
type Handler[T any] func(ctx context.Context, event *T) error

type eventIDKey struct{}

// WithEventID returns ctx carrying the id of the message being handled.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey{}, id)
}

// EventID returns the id of the message being handled, or "" outside a consumer.
func EventID(ctx context.Context) string {
	id, _ := ctx.Value(eventIDKey{}).(string)

	return id
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*consumerConfig)

type consumerConfig struct {
	decoders map[string]kv.Codec
	attempts uint
}

// WithDecoders registers payload decoders by codec name. JSON is always registered.
func WithDecoders(codecs ...kv.Codec) ConsumerOption {
	return func(c *consumerConfig) {
		for _, codec := range codecs {
			c.decoders[codec.Name()] = codec
		}
	}
}

// WithHandlerAttempts bounds how many times a failing handler runs before the message is nacked.
func WithHandlerAttempts(n uint) ConsumerOption {
	return func(c *consumerConfig) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// Consumer subscribes to a topic and processes messages with a typed handler.
//
// A failing handler is retried in place, then the message is nacked for redelivery.
// Payloads that cannot be decoded are acked and logged, since redelivering them can
// never succeed.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	config     consumerConfig
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewConsumer creates a new generic consumer for a specific event type.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
	opts ...ConsumerOption,
) *Consumer[T] {
	cfg := consumerConfig{
		decoders: map[string]kv.Codec{kv.CodecJSON: kv.JSONCodec{}},
		attempts: 1,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		config:     cfg,
		logger:     logger.With(zap.String("topic", topic)),
		done:       make(chan struct{}),
	}
}

// Topic returns the topic this consumer subscribes to.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and processes messages in the background until Shutdown.
func (c *Consumer[T]) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(ctx, c.topic)
	if err != nil {
		c.cancel()
		close(c.done)

		return err
	}

	go c.consumeLoop(ctx, msgs)

	return nil
}

func (c *Consumer[T]) consumeLoop(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer[T]) decode(msg *message.Message) (*T, error) {
	name := msg.Metadata.Get(MetadataCodec)
	if name == "" {
		name = kv.CodecJSON
	}

	codec, ok := c.config.decoders[name]
	if !ok {
		return nil, fmt.Errorf("no decoder for codec %q", name)
	}

	var event T
	if err := codec.Unmarshal(msg.Payload, &event); err != nil {
		return nil, err
	}

	return &event, nil
}

func (c *Consumer[T]) handleMessage(ctx context.Context, msg *message.Message) {
	logger := c.logger.With(
		zap.String("message_id", msg.UUID),
		zap.String("correlation_id", middleware.MessageCorrelationID(msg)),
	)

	event, err := c.decode(msg)
	if err != nil {
		logger.Error("dropping undecodable event", zap.Error(err))
		msg.Ack()

		return
	}

	ctx = WithEventID(ctx, msg.UUID)

	err = retry.Retry(func(uint) error {
		return c.handler(ctx, event)
	}, strategy.Limit(c.config.attempts), strategy.Backoff(backoff.Linear(handlerBackoff)))
	if err != nil {
		logger.Error("failed to handle event", zap.Uint("attempts", c.config.attempts), zap.Error(err))
		msg.Nack()

		return
	}

	msg.Ack()

	logger.Debug("processed event")
}

// Shutdown stops the consumer and waits for in-flight messages to complete.
func (c *Consumer[T]) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
	}

	<-c.done

	return nil
}
