package profile

import (
	"context"

	"github.com/bryanwahyu/rxguard/internal/application"
	"github.com/bryanwahyu/rxguard/internal/domain/users"
)

// Service reads and updates the caller's own profile.
type Service struct {
	Users users.Repository
	Clock application.Clock
}

func (s *Service) Get(ctx context.Context, userID string) (*users.User, error) {
	return s.Users.FindByID(ctx, userID)
}

// Update applies the non-nil fields of upd and bumps UpdatedAt.
func (s *Service) Update(ctx context.Context, userID string, upd users.ProfileUpdate) (*users.User, error) {
	u, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	upd.Apply(u)
	u.UpdatedAt = s.Clock.Now()
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
