package auth

import (
	"fmt"
	"net/url"

	"github.com/sessiongate/sessiongate/internal/domain"
)

// buildRegistrationEmail composes the verification mail stored in the queue.
// The body is a complete RFC 822 message; the sender parses out the headers
// at transmission time.
func (s *Service) buildRegistrationEmail(u domain.User) []byte {
	return fmt.Appendf(nil,
		"From: Noreply <%s>\n"+
			"To: %s <%s>\n"+
			"Subject: Registration verification\n"+
			"\n"+
			"Hello, %s\n\n"+
			"We received a registration from IP %s using this email,\n"+
			"to confirm it is legitimate, please click the link below.\n\n"+
			"%s/confirm?token=%s\n\n"+
			"If this request is unexpected, please ignore it and\n"+
			"no further action will be taken.\n\n"+
			"If you have any questions or concerns about this\n"+
			"automated email, you can contact a real person at\n"+
			"%s.\n",
		s.cfg.EmailFrom, u.Username, u.Email, u.Username, u.IP,
		s.cfg.ConfirmURL, u.Token,
		s.cfg.EmailContactPerson)
}

// buildForgotEmail composes the reset mail. The good/bad page targets the
// form posted ride along in the link, urlencoded, so the confirm endpoint
// knows where to send the browser afterwards.
func (s *Service) buildForgotEmail(u domain.User, token string, in ForgotInput) []byte {
	return fmt.Appendf(nil,
		"From: Forgot Password Assistant Noreply <%s>\n"+
			"To: %s <%s>\n"+
			"Subject: Password reset request\n"+
			"\n"+
			"Hello, %s\n\n"+
			"We received a password reset request from IP %s for this email,\n"+
			"to confirm you want to do that, please click the link below.\n\n"+
			"%s/forgot?token=%s&good=%s&bad=%s\n\n"+
			"If this request is unexpected, please ignore it and\n"+
			"no further action will be taken.\n\n"+
			"If you have any questions or concerns about this\n"+
			"automated email, you can contact a real person at\n"+
			"%s.\n",
		s.cfg.EmailFrom, u.Username, u.Email, u.Username, in.IP,
		s.cfg.ConfirmURL, token,
		url.QueryEscape(in.PostGood), url.QueryEscape(in.PostBad),
		s.cfg.EmailContactPerson)
}
