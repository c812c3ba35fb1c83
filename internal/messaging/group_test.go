package messaging_test

import (
	"context"
	"errors"
	"testing"

	"github.com/serroba/shortlinks/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunnable struct {
	topic       string
	started     bool
	stopped     bool
	startErr    error
	shutdownErr error
}

func (r *fakeRunnable) Topic() string { return r.topic }

func (r *fakeRunnable) Start(context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}

	r.started = true

	return nil
}

func (r *fakeRunnable) Shutdown() error {
	r.stopped = true

	return r.shutdownErr
}

type fakeCloser struct {
	closed bool
	err    error
}

func (c *fakeCloser) Close() error {
	c.closed = true

	return c.err
}

func TestConsumerGroup_Start(t *testing.T) {
	t.Run("starts every consumer", func(t *testing.T) {
		created := &fakeRunnable{topic: "link.created"}
		clicked := &fakeRunnable{topic: "link.clicked"}
		group := messaging.NewConsumerGroup(&fakeCloser{}, zap.NewNop())
		group.Add(created, clicked)

		require.NoError(t, group.Start(context.Background()))
		assert.True(t, created.started)
		assert.True(t, clicked.started)
	})

	t.Run("stops started consumers and names the failing topic", func(t *testing.T) {
		created := &fakeRunnable{topic: "link.created"}
		clicked := &fakeRunnable{topic: "link.clicked", startErr: errors.New("no such stream")}
		group := messaging.NewConsumerGroup(&fakeCloser{}, zap.NewNop())
		group.Add(created, clicked)

		err := group.Start(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "start link.clicked")
		assert.True(t, created.stopped)
		assert.False(t, clicked.started)
	})
}

func TestConsumerGroup_Shutdown(t *testing.T) {
	t.Run("stops consumers then closes the subscriber", func(t *testing.T) {
		consumer := &fakeRunnable{topic: "link.clicked"}
		sub := &fakeCloser{}
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		group.Add(consumer)

		require.NoError(t, group.Shutdown())
		assert.True(t, consumer.stopped)
		assert.True(t, sub.closed)
	})

	t.Run("joins every error and still stops everything", func(t *testing.T) {
		first := &fakeRunnable{topic: "link.created", shutdownErr: errors.New("boom 1")}
		second := &fakeRunnable{topic: "link.clicked", shutdownErr: errors.New("boom 2")}
		sub := &fakeCloser{err: errors.New("already closed")}
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		group.Add(first, second)

		err := group.Shutdown()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom 1")
		assert.Contains(t, err.Error(), "boom 2")
		assert.Contains(t, err.Error(), "already closed")
		assert.True(t, second.stopped)
	})

	t.Run("works without a subscriber", func(t *testing.T) {
		consumer := &fakeRunnable{}
		group := messaging.NewConsumerGroup(nil, zap.NewNop())
		group.Add(consumer)

		require.NoError(t, group.Start(context.Background()))
		require.NoError(t, group.Shutdown())
		assert.True(t, consumer.stopped)
	})
}
