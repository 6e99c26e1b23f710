package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sessiongate/sessiongate/internal/domain"
)

type fakeRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	sweeps   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: map[string]domain.Session{}}
}

func (f *fakeRepo) Insert(_ context.Context, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.Name] = s
	return nil
}

func (f *fakeRepo) Get(_ context.Context, name string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound()
	}
	return s, nil
}

func (f *fakeRepo) Update(_ context.Context, name, username string, expire int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		return domain.ErrSessionNotFound()
	}
	s.Username = username
	s.Expire = expire
	f.sessions[name] = s
	return nil
}

func (f *fakeRepo) Touch(_ context.Context, name string, lastSeen int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[name]; ok {
		s.LastSeen = lastSeen
		f.sessions[name] = s
	}
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, name)
	return nil
}

func (f *fakeRepo) DeleteExpired(_ context.Context, now int64, idleSecs int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	var n int64
	for name, s := range f.sessions {
		if s.Expire <= now || (s.LastSeen != 0 && now-s.LastSeen > idleSecs) {
			delete(f.sessions, name)
			n++
		}
	}
	return n, nil
}

func newTestManager(repo *fakeRepo, at *time.Time) *Manager {
	return NewManager(repo, Config{
		IdleTTL:     600 * time.Second,
		AbsoluteTTL: 36000 * time.Second,
		AnonTTL:     1200 * time.Second,
	}).WithClock(func() time.Time { return *at })
}

func TestNewAnonymousAndLookup(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	now := time.Unix(100_000, 0)
	m := newTestManager(repo, &now)
	ctx := context.Background()

	s, err := m.NewAnonymous(ctx)
	if err != nil {
		t.Fatalf("new anonymous: %v", err)
	}
	if !s.Anonymous() {
		t.Fatalf("expected anonymous session")
	}
	if s.Expire != now.Unix()+1200 {
		t.Fatalf("anon expire = %d, want %d", s.Expire, now.Unix()+1200)
	}

	got, err := m.Lookup(ctx, s.Name)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Name != s.Name {
		t.Fatalf("lookup returned %q, want %q", got.Name, s.Name)
	}
}

func TestLookupRejectsMalformedAndExpired(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	now := time.Unix(100_000, 0)
	m := newTestManager(repo, &now)
	ctx := context.Background()

	if _, err := m.Lookup(ctx, "not-a-session-id"); !domain.Is(err, "session_not_found") {
		t.Fatalf("malformed id: got %v", err)
	}

	s, _ := m.NewAuthorized(ctx, "alice")

	// Jump past the absolute deadline; lookup must fail and remove the row.
	now = now.Add(36001 * time.Second)
	if _, err := m.Lookup(ctx, s.Name); !domain.Is(err, "session_not_found") {
		t.Fatalf("expired session: got %v", err)
	}
	if _, ok := repo.sessions[s.Name]; ok {
		t.Fatalf("expired session row must be deleted on lookup")
	}
}

func TestLookupBumpsLastSeen(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	now := time.Unix(100_000, 0)
	m := newTestManager(repo, &now)
	ctx := context.Background()

	s, _ := m.NewAuthorized(ctx, "alice")

	now = now.Add(100 * time.Second)
	got, err := m.Lookup(ctx, s.Name)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.LastSeen != now.Unix() {
		t.Fatalf("LastSeen = %d, want %d", got.LastSeen, now.Unix())
	}
	if repo.sessions[s.Name].LastSeen != now.Unix() {
		t.Fatalf("repo row not touched")
	}
}

func TestSweepHysteresis(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	now := time.Unix(100_000, 0)
	m := newTestManager(repo, &now)
	ctx := context.Background()

	m.Sweep(ctx)
	m.Sweep(ctx)
	if repo.sweeps != 1 {
		t.Fatalf("back-to-back sweeps ran %d times, want 1", repo.sweeps)
	}

	now = now.Add(4 * time.Second)
	m.Sweep(ctx)
	if repo.sweeps != 1 {
		t.Fatalf("sweep inside the window ran; count %d", repo.sweeps)
	}

	now = now.Add(2 * time.Second)
	m.Sweep(ctx)
	if repo.sweeps != 2 {
		t.Fatalf("sweep after the window did not run; count %d", repo.sweeps)
	}
}

func TestAuthorizeAndDemote(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	now := time.Unix(100_000, 0)
	m := newTestManager(repo, &now)
	ctx := context.Background()

	anon, _ := m.NewAnonymous(ctx)

	s, err := m.Authorize(ctx, anon.Name, "alice")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if s.Name != anon.Name {
		t.Fatalf("authorize must keep the session id")
	}
	if s.Username != "alice" || s.Expire != now.Unix()+36000 {
		t.Fatalf("authorized session wrong: %+v", s)
	}

	s, err = m.Demote(ctx, anon.Name)
	if err != nil {
		t.Fatalf("demote: %v", err)
	}
	if !s.Anonymous() || s.Expire != now.Unix()+1200 {
		t.Fatalf("demoted session wrong: %+v", s)
	}
}

func TestSessionIDShape(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	now := time.Unix(100_000, 0)
	m := newTestManager(repo, &now)

	s, err := m.NewAnonymous(context.Background())
	if err != nil {
		t.Fatalf("new anonymous: %v", err)
	}
	if len(s.Name) != 40 || strings.ToLower(s.Name) != s.Name {
		t.Fatalf("session id %q not 40 lowercase hex chars", s.Name)
	}
}
