package shortener

import (
	"context"

	"go.uber.org/zap"
)

// CreateSession records a successful sign-in: it upserts the user derived from profile
// and maps sessionID to it in one commit. An existing user keeps CreatedAt and gets the
// latest profile snapshot.
func (s *Service) CreateSession(ctx context.Context, sessionID string, profile Profile) (*User, error) {
	userID := profile.UserID()

	var user *User

	err := s.retryOnConflict(func() error {
		existing, err := s.users.Get(ctx, userID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		record := User{
			ID:          userID,
			Provider:    profile.Provider,
			Profile:     profile,
			CreatedAt:   now,
			LastLoginAt: now,
		}
		checkUser := s.users.ProduceCheck("", userID)

		if existing != nil {
			record.CreatedAt = existing.Value.CreatedAt
			checkUser = s.users.ProduceCheck(existing.Versionstamp, userID)
		}

		setUser, err := s.users.ProduceSet(record, userID)
		if err != nil {
			return err
		}

		setSession, err := s.sessions.ProduceSet(Session{ID: sessionID, UserID: userID, CreatedAt: now}, sessionID)
		if err != nil {
			return err
		}

		if _, err := s.store.Commit(ctx, checkUser, s.sessions.ProduceCheck("", sessionID), setUser, setSession); err != nil {
			return err
		}

		user = &record

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("session created", zap.String("user", userID))

	return user, nil
}

// SessionUser returns the user signed in with sessionID.
func (s *Service) SessionUser(ctx context.Context, sessionID string) (*User, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.GetUser(ctx, session.Value.UserID)
	if err != nil {
		s.logger.Warn("session references missing user",
			zap.String("user", session.Value.UserID),
			zap.Error(err),
		)

		return nil, err
	}

	return user, nil
}

// RemoveSession deletes the session record. Removing an absent session succeeds.
func (s *Service) RemoveSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// GetUser returns the user record for userID.
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	item, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if item == nil {
		return nil, ErrUserNotFound
	}

	return &item.Value, nil
}
