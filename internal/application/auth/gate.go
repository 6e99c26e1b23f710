package auth

import (
	"context"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/metrics"
)

// AuthLevel computes the capability bitset for an identity. The admin
// identity is verified by fiat; everyone else earns bits from their row.
func (s *Service) AuthLevel(ctx context.Context, username string) domain.AuthLevel {
	var level domain.AuthLevel

	if username != "" {
		level |= domain.AuthLoggedIn
		if username == s.cfg.AdminUser {
			level |= domain.AuthAdmin | domain.AuthVerified
		}
	}

	if u, err := s.users.Get(ctx, username); err == nil {
		if u.Verified == domain.VerifiedAccepted {
			level |= domain.AuthVerified
		}
		if u.LastForgotValidated > s.now().Add(-ForgotGrace).Unix() {
			level |= domain.AuthForgotFlow
		}
	}

	return level
}

// Email returns the address on file, empty for anonymous and for the
// injected admin identity.
func (s *Service) Email(ctx context.Context, username string) string {
	u, err := s.users.Get(ctx, username)
	if err != nil {
		return ""
	}
	return u.Email
}

// Authorized grants access iff every required bit is held.
func (s *Service) Authorized(ctx context.Context, username string, required domain.AuthLevel) bool {
	if s.AuthLevel(ctx, username).Satisfies(required) {
		return true
	}
	metrics.AccessDenied.Inc()
	return false
}
