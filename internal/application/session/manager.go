package session

import (
	"context"
	"sync"
	"time"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/infrastructure/security"
	"github.com/sessiongate/sessiongate/internal/logger"
	"github.com/sessiongate/sessiongate/internal/metrics"
)

// sweepEvery is the hysteresis between lazy expiry sweeps. Races on the
// timestamp are benign; the delete is idempotent.
const sweepEvery = 5 * time.Second

// Repo is the persistence port for sessions.
type Repo interface {
	Insert(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, name string) (domain.Session, error)
	Update(ctx context.Context, name, username string, expire int64) error
	Touch(ctx context.Context, name string, lastSeen int64) error
	Delete(ctx context.Context, name string) error
	DeleteExpired(ctx context.Context, now int64, idleSecs int64) (int64, error)
}

type Config struct {
	IdleTTL     time.Duration
	AbsoluteTTL time.Duration
	AnonTTL     time.Duration
}

// Manager issues, resolves and retires sessions. All methods trigger the
// lazy sweep first, so callers never observe a session past its deadline.
type Manager struct {
	repo Repo
	cfg  Config

	mu        sync.Mutex
	lastSweep time.Time

	now func() time.Time
}

func NewManager(repo Repo, cfg Config) *Manager {
	return &Manager{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Sweep deletes dead sessions when the hysteresis window has elapsed.
func (m *Manager) Sweep(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	if now.Sub(m.lastSweep) < sweepEvery {
		m.mu.Unlock()
		return
	}
	m.lastSweep = now
	m.mu.Unlock()

	n, err := m.repo.DeleteExpired(ctx, now.Unix(), int64(m.cfg.IdleTTL.Seconds()))
	if err != nil {
		logger.WithCtx(ctx).Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		metrics.SessionsSwept.Add(float64(n))
		logger.WithCtx(ctx).Debug().Int64("removed", n).Msg("session sweep")
	}
}

// Lookup resolves a cookie-borne session id. Expired and unknown ids both
// come back as ErrSessionNotFound; the caller reissues an anonymous session.
func (m *Manager) Lookup(ctx context.Context, sid string) (domain.Session, error) {
	m.Sweep(ctx)

	if !security.ValidHexHash(sid) {
		return domain.Session{}, domain.ErrSessionNotFound()
	}

	s, err := m.repo.Get(ctx, sid)
	if err != nil {
		return domain.Session{}, err
	}

	now := m.now().Unix()
	if s.Expire <= now {
		_ = m.repo.Delete(ctx, sid)
		return domain.Session{}, domain.ErrSessionNotFound()
	}

	// Idle timeout accounting; best effort, a lost bump only shortens the
	// session, never extends it.
	_ = m.repo.Touch(ctx, sid, now)
	s.LastSeen = now

	return s, nil
}

// NewAnonymous mints a fresh unauthenticated session.
func (m *Manager) NewAnonymous(ctx context.Context) (domain.Session, error) {
	return m.create(ctx, "", m.cfg.AnonTTL)
}

// NewAuthorized mints a fresh session bound to username.
func (m *Manager) NewAuthorized(ctx context.Context, username string) (domain.Session, error) {
	return m.create(ctx, username, m.cfg.AbsoluteTTL)
}

func (m *Manager) create(ctx context.Context, username string, ttl time.Duration) (domain.Session, error) {
	m.Sweep(ctx)

	sid, err := security.NewSessionID()
	if err != nil {
		return domain.Session{}, domain.ErrRandomFailed(err)
	}

	now := m.now().Unix()
	s := domain.Session{
		Name:     sid,
		Username: username,
		Expire:   now + int64(ttl.Seconds()),
		LastSeen: now,
	}
	if err := m.repo.Insert(ctx, s); err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// Authorize binds an existing session to a username and extends it to the
// authenticated TTL. Used when a login arrives on a live anonymous session.
func (m *Manager) Authorize(ctx context.Context, sid, username string) (domain.Session, error) {
	now := m.now().Unix()
	expire := now + int64(m.cfg.AbsoluteTTL.Seconds())
	if err := m.repo.Update(ctx, sid, username, expire); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Name: sid, Username: username, Expire: expire, LastSeen: now}, nil
}

// Demote strips the user binding from a session, leaving it anonymous.
// Logout keeps the cookie; only the identity goes away.
func (m *Manager) Demote(ctx context.Context, sid string) (domain.Session, error) {
	now := m.now().Unix()
	expire := now + int64(m.cfg.AnonTTL.Seconds())
	if err := m.repo.Update(ctx, sid, "", expire); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Name: sid, Username: "", Expire: expire, LastSeen: now}, nil
}

// Delete removes a session outright.
func (m *Manager) Delete(ctx context.Context, sid string) error {
	return m.repo.Delete(ctx, sid)
}
