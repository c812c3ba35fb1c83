package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store counts requests per key over a sliding window.
type Store interface {
	// Record adds a request at the current time and returns how many requests
	// for key fall inside window, this one included.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}

// Sweeper is a Store holding keys in process memory that must be pruned.
type Sweeper interface {
	Store
	// Sweep forgets keys with no request newer than window and reports how many went.
	Sweep(window time.Duration) int
}

// Janitor sweeps idle keys out of a Sweeper on a fixed interval until shut down.
type Janitor struct {
	sweeper Sweeper
	stop    chan struct{}
	done    chan struct{}
}

// NewJanitor starts sweeping s every interval, forgetting keys idle for longer than window.
func NewJanitor(s Sweeper, interval, window time.Duration, logger *zap.Logger) *Janitor {
	j := &Janitor{sweeper: s, stop: make(chan struct{}), done: make(chan struct{})}

	go j.run(interval, window, logger)

	return j
}

func (j *Janitor) run(interval, window time.Duration, logger *zap.Logger) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			if n := j.sweeper.Sweep(window); n > 0 {
				logger.Debug("swept idle rate limit keys", zap.Int("count", n))
			}
		}
	}
}

// Store returns the swept store.
func (j *Janitor) Store() Store {
	return j.sweeper
}

// Shutdown stops the sweep loop and waits for it to exit.
func (j *Janitor) Shutdown() error {
	close(j.stop)
	<-j.done

	return nil
}
