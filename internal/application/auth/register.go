package auth

import (
	"context"
	"errors"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/infrastructure/security"
	"github.com/sessiongate/sessiongate/internal/logger"
	"github.com/sessiongate/sessiongate/internal/metrics"
)

// Register creates an unverified account and queues the verification email.
// The caller redirects to its reg-good/reg-bad targets and always downgrades
// the browser to a fresh anonymous session.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := in.Validate(); err != nil {
		metrics.Registrations.WithLabelValues("bad_input").Inc()
		return err
	}

	// The admin identity is injected from config and must never land in
	// the users table.
	if in.Username == s.cfg.AdminUser {
		metrics.Registrations.WithLabelValues("reserved").Inc()
		return domain.ErrReservedUsername()
	}

	if _, err := s.users.Get(ctx, in.Username); err == nil {
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return domain.ErrUsernameAlreadyExists()
	} else if !domain.Is(err, "user_not_found") {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return domain.ErrEmailAlreadyExists()
	} else if !domain.Is(err, "user_not_found") {
		return err
	}

	salt, err := security.NewSalt()
	if err != nil {
		return domain.ErrRandomFailed(err)
	}
	token, err := security.NewToken()
	if err != nil {
		return domain.ErrRandomFailed(err)
	}

	now := s.now().Unix()
	u := domain.User{
		Username:     in.Username,
		CreationTime: now,
		IP:           in.IP,
		Email:        in.Email,
		PwHash:       security.PasswordHash(in.Password, s.cfg.Confounder, salt),
		PwSalt:       salt,
		Token:        token,
		Verified:     domain.VerifiedNone,
		TokenTime:    now,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		var de *domain.Error
		if errors.As(err, &de) && de.Kind == domain.KindConflict {
			metrics.Registrations.WithLabelValues("duplicate").Inc()
		}
		return err
	}

	msg := s.buildRegistrationEmail(u)
	if err := s.queue.Enqueue(ctx, u.Username, msg); err != nil {
		return err
	}
	s.kick()

	metrics.Registrations.WithLabelValues("ok").Inc()
	s.audit("user_registered", map[string]string{"username": u.Username, "ip": u.IP})
	logger.WithCtx(ctx).Info().
		Str("username", u.Username).
		Str("ip", u.IP).
		Msg("user registered, verification email queued")

	return nil
}

// Confirm consumes a registration token. Only users sitting in the
// "verification email dispatched" state can transition; replaying the link
// after acceptance misses. Returns the username so the caller can open an
// authorized session.
func (s *Service) Confirm(ctx context.Context, token string) (string, error) {
	if !security.ValidHexHash(token) {
		return "", domain.ErrTokenInvalid()
	}

	u, err := s.users.GetByToken(ctx, token, false)
	if err != nil {
		return "", domain.ErrTokenInvalid()
	}
	if u.Verified != domain.VerifiedMailed {
		return "", domain.ErrTokenInvalid()
	}

	if err := s.users.UpdateVerified(ctx, u.Username, domain.VerifiedAccepted); err != nil {
		return "", err
	}

	s.audit("email_verified", map[string]string{"username": u.Username})
	logger.WithCtx(ctx).Info().Str("username", u.Username).Msg("account verified")

	return u.Username, nil
}
