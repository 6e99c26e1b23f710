package auth

import (
	"context"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/infrastructure/security"
	"github.com/sessiongate/sessiongate/internal/logger"
	"github.com/sessiongate/sessiongate/internal/metrics"
)

type LoginResult struct {
	Username string
	// Admin is set when the injected admin identity matched; the caller
	// prefers the form's admin target over the good target.
	Admin bool
}

// Login authenticates a user.
// IMPORTANT: must not leak whether the username exists (avoid enumeration);
// every failure is the same invalid-credentials error.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	if username == "" || password == "" {
		metrics.Logins.WithLabelValues("failed").Inc()
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	// Admin is checked first and against the bare sha1 of the submitted
	// password; the admin hash predates the salted scheme and is kept for
	// compatibility with deployed configs.
	if username == s.cfg.AdminUser {
		if security.HashEqual(security.SHA1Hex([]byte(password)), s.cfg.AdminPasswordSHA1) {
			metrics.Logins.WithLabelValues("admin").Inc()
			s.audit("admin_login", map[string]string{"username": username})
			logger.WithCtx(ctx).Info().Str("username", username).Msg("admin logged in")
			return LoginResult{Username: username, Admin: true}, nil
		}
		metrics.Logins.WithLabelValues("failed").Inc()
		return LoginResult{}, domain.ErrInvalidCredentials()
	}

	if err := s.checkCredentials(ctx, username, password); err != nil {
		metrics.Logins.WithLabelValues("failed").Inc()
		logger.WithCtx(ctx).Warn().Str("username", username).Msg("login failed")
		return LoginResult{}, err
	}

	metrics.Logins.WithLabelValues("ok").Inc()
	s.audit("user_login", map[string]string{"username": username})
	logger.WithCtx(ctx).Info().Str("username", username).Msg("user logged in")

	return LoginResult{Username: username}, nil
}

// checkCredentials recomputes the salted hash and compares in constant time.
func (s *Service) checkCredentials(ctx context.Context, username, password string) error {
	u, err := s.users.Get(ctx, username)
	if err != nil {
		// Hide not-found behind invalid credentials.
		return domain.ErrInvalidCredentials()
	}
	if !security.HashEqual(security.PasswordHash(password, s.cfg.Confounder, u.PwSalt), u.PwHash) {
		return domain.ErrInvalidCredentials()
	}
	return nil
}
