package store

import (
	"context"

	"github.com/serroba/shortlinks/internal/analytics"
	"go.uber.org/zap"
)

// Logging writes a debug line for every event, then hands it to next.
// With a nil next it only logs.
type Logging struct {
	next   analytics.Store
	logger *zap.Logger
}

func NewLogging(next analytics.Store, logger *zap.Logger) *Logging {
	return &Logging{next: next, logger: logger.Named("analytics")}
}

func (l *Logging) SaveLinkCreated(ctx context.Context, event *analytics.LinkCreatedEvent) error {
	log := l.logger.With(zap.String("code", event.Code), zap.String("owner", event.OwnerID))
	log.Debug("link created", zap.String("long_url", event.LongURL), zap.String("strategy", event.Strategy))

	if l.next == nil {
		return nil
	}

	if err := l.next.SaveLinkCreated(ctx, event); err != nil {
		log.Warn("persist link created", zap.Error(err))

		return err
	}

	return nil
}

func (l *Logging) SaveLinkClicked(ctx context.Context, event *analytics.LinkClickedEvent) error {
	log := l.logger.With(zap.String("code", event.Code))
	log.Debug("link clicked", zap.String("country", event.Country), zap.String("referrer", event.Referrer))

	if l.next == nil {
		return nil
	}

	if err := l.next.SaveLinkClicked(ctx, event); err != nil {
		log.Warn("persist link clicked", zap.Error(err))

		return err
	}

	return nil
}

var _ analytics.Store = (*Logging)(nil)
