package auth

import (
	"context"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/infrastructure/security"
	"github.com/sessiongate/sessiongate/internal/logger"
)

// ChangeInput carries a password change. SessionUser is the identity bound
// to the caller's session, empty when anonymous.
type ChangeInput struct {
	Username    string
	CurPassword string
	NewPassword string
	SessionUser string
}

// ChangePassword rehashes with a fresh salt. A caller inside the forgot
// grace window changes the password of their session's user without the old
// one; everyone else must present valid current credentials.
func (s *Service) ChangePassword(ctx context.Context, in ChangeInput) error {
	if in.NewPassword == "" {
		return domain.ErrMissingField("password")
	}

	username := in.Username
	inGrace := false
	if in.SessionUser != "" {
		if u, err := s.users.Get(ctx, in.SessionUser); err == nil {
			if u.LastForgotValidated > s.now().Add(-ForgotGrace).Unix() {
				inGrace = true
				username = u.Username
			}
		}
	}

	if !inGrace {
		if err := s.checkCredentials(ctx, in.Username, in.CurPassword); err != nil {
			logger.WithCtx(ctx).Warn().Str("username", in.Username).Msg("password change refused")
			return err
		}
		username = in.Username
	}

	salt, err := security.NewSalt()
	if err != nil {
		return domain.ErrRandomFailed(err)
	}
	hash := security.PasswordHash(in.NewPassword, s.cfg.Confounder, salt)

	// UpdatePassword also zeroes last_forgot_validated; the grace window is
	// single-use.
	if err := s.users.UpdatePassword(ctx, username, hash, salt, s.now().Unix()); err != nil {
		return err
	}

	s.audit("password_changed", map[string]string{"username": username})
	logger.WithCtx(ctx).Info().Str("username", username).Bool("via_grace", inGrace).Msg("password changed")

	return nil
}
