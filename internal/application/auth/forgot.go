package auth

import (
	"context"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/infrastructure/security"
	"github.com/sessiongate/sessiongate/internal/logger"
)

// ForgotInput carries a reset request. Exactly one of Username/Email must be
// set; PostGood/PostBad are the page targets baked into the emailed link.
type ForgotInput struct {
	Username string
	Email    string
	PostGood string
	PostBad  string
	IP       string
}

// ForgotInit issues a reset token and queues the reset email. The token
// doubles as the users.token column, superseding any pending verification
// token.
func (s *Service) ForgotInit(ctx context.Context, in ForgotInput) error {
	if in.Username == "" && in.Email == "" {
		return domain.ErrMissingField("username/email")
	}

	var (
		u   domain.User
		err error
	)
	if in.Username != "" {
		u, err = s.users.Get(ctx, in.Username)
	} else {
		u, err = s.users.GetByEmail(ctx, in.Email)
	}
	if err != nil {
		return domain.ErrUserNotFound()
	}

	token, err := security.NewToken()
	if err != nil {
		return domain.ErrRandomFailed(err)
	}

	msg := s.buildForgotEmail(u, token, in)
	if err := s.queue.Enqueue(ctx, u.Username, msg); err != nil {
		return err
	}
	if err := s.users.UpdateToken(ctx, u.Username, token, s.now().Unix()); err != nil {
		return err
	}
	s.kick()

	s.audit("forgot_initiated", map[string]string{"username": u.Username, "ip": in.IP})
	logger.WithCtx(ctx).Info().Str("username", u.Username).Msg("password reset email queued")

	return nil
}

// ForgotConsume validates a clicked reset link. Only verified accounts with
// a live token match; consuming zeroes token_time and opens the 300 s grace
// window for a password change without the old password.
func (s *Service) ForgotConsume(ctx context.Context, token string) (string, error) {
	if !security.ValidHexHash(token) {
		return "", domain.ErrTokenInvalid()
	}

	u, err := s.users.GetByToken(ctx, token, true)
	if err != nil {
		return "", domain.ErrTokenInvalid()
	}

	if err := s.users.UpdateForgotValidated(ctx, u.Username, s.now().Unix()); err != nil {
		return "", err
	}

	s.audit("forgot_validated", map[string]string{"username": u.Username})
	logger.WithCtx(ctx).Info().Str("username", u.Username).Msg("password reset link validated")

	return u.Username, nil
}
