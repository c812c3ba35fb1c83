package store

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/kv"
	"github.com/serroba/shortlinks/internal/messaging"
)

// KV persists link events in the key-value store.
//
// Clicks live under ("clicks", code, eventID) and creations under ("linkEvents", code).
// Keying by the message id makes redelivered events idempotent.
type KV struct {
	store   kv.Store
	codec   kv.Codec
	created *kv.Table[analytics.LinkCreatedEvent]
}

// NewKV creates a KV analytics store.
func NewKV(store kv.Store, codec kv.Codec) *KV {
	return &KV{
		store:   store,
		codec:   codec,
		created: kv.NewTable[analytics.LinkCreatedEvent](store, codec, "linkEvents"),
	}
}

func (s *KV) clickTable(code string) *kv.Table[analytics.LinkClickedEvent] {
	return kv.NewTable[analytics.LinkClickedEvent](s.store, s.codec, "clicks", code)
}

func (s *KV) SaveLinkCreated(ctx context.Context, event *analytics.LinkCreatedEvent) error {
	_, err := s.created.Set(ctx, *event, event.Code)

	return err
}

func (s *KV) SaveLinkClicked(ctx context.Context, event *analytics.LinkClickedEvent) error {
	id := messaging.EventID(ctx)
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.clickTable(event.Code).Set(ctx, *event, id)

	return err
}

// Clicks returns up to limit of the most recent clicks recorded for code, newest first.
// A non-positive limit returns all of them.
func (s *KV) Clicks(ctx context.Context, code string, limit int) ([]analytics.LinkClickedEvent, error) {
	items, err := s.clickTable(code).GetAll(ctx)
	if err != nil {
		return nil, err
	}

	clicks := make([]analytics.LinkClickedEvent, len(items))
	for i, item := range items {
		clicks[i] = item.Value
	}

	slices.SortStableFunc(clicks, func(a, b analytics.LinkClickedEvent) int {
		return b.ClickedAt.Compare(a.ClickedAt)
	})

	if limit > 0 && len(clicks) > limit {
		clicks = clicks[:limit]
	}

	return clicks, nil
}

var _ analytics.Store = (*KV)(nil)
