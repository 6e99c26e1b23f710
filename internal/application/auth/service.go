package auth

import (
	"time"
)

// ForgotGrace is the window after a reset link is clicked during which a
// password change does not require the old password.
const ForgotGrace = 300 * time.Second

type Config struct {
	// AdminUser is an injected identity; it never exists in the users table.
	AdminUser         string
	AdminPasswordSHA1 string

	// Confounder is the per-deployment pepper mixed into password hashes.
	Confounder string

	// Email composition
	EmailFrom          string
	EmailTitle         string
	EmailContactPerson string
	ConfirmURL         string // base URL the /confirm and /forgot links point at
}

// Service implements the credential lifecycle: register, confirm, login,
// forgot-password, change-password, uniqueness probes and the capability
// gate.
type Service struct {
	users UserRepo
	queue EmailQueue
	cfg   Config

	// wake nudges the email worker after an enqueue; nil means nobody is
	// draining (tests).
	wake func()

	audit func(action string, fields map[string]string)
	now   func() time.Time
}

func NewService(users UserRepo, queue EmailQueue, cfg Config) *Service {
	return &Service{
		users: users,
		queue: queue,
		cfg:   cfg,
		audit: func(string, map[string]string) {},
		now:   time.Now,
	}
}

// WithWake registers the email worker's wake function.
func (s *Service) WithWake(fn func()) *Service {
	if fn != nil {
		s.wake = fn
	}
	return s
}

func (s *Service) WithAudit(fn func(action string, fields map[string]string)) *Service {
	if fn != nil {
		s.audit = fn
	}
	return s
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ConfirmURL is the base the emailed links point at; the link-click
// handlers redirect relative to it.
func (s *Service) ConfirmURL() string { return s.cfg.ConfirmURL }

func (s *Service) kick() {
	if s.wake != nil {
		s.wake()
	}
}
