package shortener

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/serroba/shortlinks/internal/kv"
	"go.uber.org/zap"
)

const (
	defaultConflictRetries = 5
	conflictBackoff        = 5 * time.Millisecond
)

// Service implements link, user and session use cases on top of a kv.Store.
//
// A ShortLink and its owner index entry are always written and removed in the
// same commit.
type Service struct {
	store           kv.Store
	codec           kv.Codec
	links           *kv.Table[ShortLink]
	users           *kv.Table[User]
	sessions        *kv.Table[Session]
	strategy        CodeStrategy
	now             func() time.Time
	conflictRetries uint
	logger          *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStrategy sets the short-code strategy. The default is HashStrategy.
func WithStrategy(s CodeStrategy) Option {
	return func(svc *Service) { svc.strategy = s }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// WithConflictRetries bounds the attempts made when a commit check fails.
func WithConflictRetries(n uint) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.conflictRetries = n
		}
	}
}

// NewService creates a new Service.
func NewService(store kv.Store, codec kv.Codec, logger *zap.Logger, opts ...Option) *Service {
	svc := &Service{
		store:           store,
		codec:           codec,
		links:           kv.NewTable[ShortLink](store, codec, "shortLink"),
		users:           kv.NewTable[User](store, codec, "users"),
		sessions:        kv.NewTable[Session](store, codec, "sessions"),
		strategy:        HashStrategy{},
		now:             time.Now,
		conflictRetries: defaultConflictRetries,
		logger:          logger,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// ownerIndex is the per-owner table of IndexEntry rows.
func (s *Service) ownerIndex(ownerID string) *kv.Table[IndexEntry] {
	return kv.NewTable[IndexEntry](s.store, s.codec, "users", ownerID)
}

// retryOnConflict re-runs fn while it fails with kv.ErrConflict. Other errors stop immediately.
func (s *Service) retryOnConflict(fn func() error) error {
	var final error

	err := retry.Retry(func(uint) error {
		final = fn()
		if errors.Is(final, kv.ErrConflict) {
			return final
		}

		return nil
	}, strategy.Limit(s.conflictRetries), strategy.Backoff(backoff.Linear(conflictBackoff)))
	if err != nil {
		return err
	}

	return final
}

// CreateLink stores a new short link for ownerID and reports whether it was created.
//
// Re-submitting a URL the owner already shortened returns the existing link unchanged.
// A code held by another owner or another URL fails with ErrCodeTaken.
func (s *Service) CreateLink(ctx context.Context, longURL, ownerID string) (*ShortLink, bool, error) {
	if err := ValidateURL(longURL); err != nil {
		return nil, false, err
	}

	var (
		link    *ShortLink
		created bool
	)

	err := s.retryOnConflict(func() error {
		code := s.strategy.Code(longURL, ownerID)

		existing, err := s.links.Get(ctx, code)
		if err != nil {
			return err
		}

		if existing != nil {
			if existing.Value.OwnerID == ownerID && existing.Value.LongURL == longURL {
				link, created = &existing.Value, false

				return nil
			}

			if !s.strategy.Deterministic() {
				// a fresh random code may be free
				return kv.ErrConflict
			}

			return ErrCodeTaken
		}

		now := s.now().UTC()
		record := ShortLink{
			ShortCode: code,
			LongURL:   longURL,
			OwnerID:   ownerID,
			CreatedAt: now,
		}

		setLink, err := s.links.ProduceSet(record, code)
		if err != nil {
			return err
		}

		setIndex, err := s.ownerIndex(ownerID).ProduceSet(IndexEntry{ShortCode: code, CreatedAt: now}, code)
		if err != nil {
			return err
		}

		if _, err := s.store.Commit(ctx, s.links.ProduceCheck("", code), setLink, setIndex); err != nil {
			return err
		}

		link, created = &record, true

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("short link created",
			zap.String("code", link.ShortCode),
			zap.String("owner", ownerID),
		)
	}

	return link, created, nil
}

// ResolveLink returns the link for code. It does not check ownership.
func (s *Service) ResolveLink(ctx context.Context, code string) (*ShortLink, error) {
	item, err := s.links.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	if item == nil {
		return nil, ErrNotFound
	}

	return &item.Value, nil
}

// RecordClick increments the click count of code with a versionstamp check,
// retrying when a concurrent click wins the race.
func (s *Service) RecordClick(ctx context.Context, code string) (*ShortLink, error) {
	var link *ShortLink

	err := s.retryOnConflict(func() error {
		item, err := s.links.Get(ctx, code)
		if err != nil {
			return err
		}

		if item == nil {
			return ErrNotFound
		}

		updated := item.Value
		updated.ClickCount++
		clickedAt := s.now().UTC()
		updated.LastClickAt = &clickedAt

		set, err := s.links.ProduceSet(updated, code)
		if err != nil {
			return err
		}

		if _, err := s.store.Commit(ctx, s.links.ProduceCheck(item.Versionstamp, code), set); err != nil {
			return err
		}

		link = &updated

		return nil
	})
	if err != nil {
		return nil, err
	}

	return link, nil
}

// ListLinks returns the links indexed under ownerID, newest first.
//
// Index entries whose link is missing or owned by someone else are logged and skipped.
func (s *Service) ListLinks(ctx context.Context, ownerID string) ([]ShortLink, error) {
	keys, err := s.ownerIndex(ownerID).GetAllKeys(ctx)
	if err != nil {
		return nil, err
	}

	codes := make([]kv.Key, 0, len(keys))

	for _, key := range keys {
		if len(key) == 1 {
			codes = append(codes, key)
		}
	}

	items, err := s.links.GetMany(ctx, codes)
	if err != nil {
		return nil, err
	}

	links := make([]ShortLink, 0, len(items))

	for i, item := range items {
		code := codes[i][0]

		switch {
		case item == nil:
			s.logger.Warn("owner index references missing link",
				zap.String("owner", ownerID),
				zap.String("code", code),
			)
		case item.Value.OwnerID != ownerID:
			s.logger.Warn("owner index references link of another owner",
				zap.String("owner", ownerID),
				zap.String("code", code),
				zap.String("actual_owner", item.Value.OwnerID),
			)
		default:
			links = append(links, item.Value)
		}
	}

	slices.SortStableFunc(links, func(a, b ShortLink) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return links, nil
}

// DeleteLink removes the link and its owner index entry in one commit.
// Deleting an absent link succeeds; deleting another owner's link fails with ErrNotOwner.
func (s *Service) DeleteLink(ctx context.Context, ownerID, code string) error {
	index := s.ownerIndex(ownerID)

	err := s.retryOnConflict(func() error {
		item, err := s.links.Get(ctx, code)
		if err != nil {
			return err
		}

		if item == nil {
			// clears a dangling index entry, if any
			_, err := s.store.Commit(ctx, s.links.ProduceCheck("", code), index.ProduceDelete(code))

			return err
		}

		if item.Value.OwnerID != ownerID {
			return ErrNotOwner
		}

		_, err = s.store.Commit(ctx,
			s.links.ProduceCheck(item.Versionstamp, code),
			s.links.ProduceDelete(code),
			index.ProduceDelete(code),
		)

		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("short link deleted", zap.String("code", code), zap.String("owner", ownerID))

	return nil
}

// TryDeleteLink is DeleteLink reporting failure as false. Errors are logged.
func (s *Service) TryDeleteLink(ctx context.Context, ownerID, code string) bool {
	if err := s.DeleteLink(ctx, ownerID, code); err != nil {
		s.logger.Error("failed to delete short link",
			zap.String("code", code),
			zap.String("owner", ownerID),
			zap.Error(err),
		)

		return false
	}

	return true
}
