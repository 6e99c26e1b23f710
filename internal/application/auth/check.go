package auth

import (
	"context"

	"github.com/sessiongate/sessiongate/internal/domain"
)

// CheckUsername reports whether a username is already taken. The injected
// admin identity counts as taken even though it has no row.
func (s *Service) CheckUsername(ctx context.Context, username string) (bool, error) {
	if username == s.cfg.AdminUser {
		return true, nil
	}
	_, err := s.users.Get(ctx, username)
	if err == nil {
		return true, nil
	}
	if domain.Is(err, "user_not_found") || domain.Is(err, "missing_field") {
		return false, nil
	}
	return false, err
}

// CheckEmail reports whether an email address is already registered.
func (s *Service) CheckEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if domain.Is(err, "user_not_found") || domain.Is(err, "missing_field") {
		return false, nil
	}
	return false, err
}
