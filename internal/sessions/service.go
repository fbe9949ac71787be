package sessions

import (
	"context"
	"time"
)

// Service tracks the set of live credentials.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, now: func() time.Time { return time.Now().UTC() }}
}

// CreateSession records token id for userID until ttl elapses.
func (s *Service) CreateSession(ctx context.Context, id, userID string, ttl time.Duration) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// IsActive reports whether the session exists and has not expired.
func (s *Service) IsActive(ctx context.Context, id string) (bool, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	if sess.expired(s.now()) {
		_ = s.repo.Delete(ctx, id)
		return false, nil
	}
	return true, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
