package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sessiongate/sessiongate/internal/domain"
)

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	users map[string]domain.User

	// injected errors (if set, method returns error)
	getErr    error
	insertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]domain.User{}}
}

func (f *fakeUserRepo) Get(_ context.Context, username string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.User{}, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) GetByToken(_ context.Context, token string, requireVerified bool) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Token != token {
			continue
		}
		if requireVerified && (u.Verified != domain.VerifiedAccepted || u.TokenTime == 0) {
			continue
		}
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound()
}

func (f *fakeUserRepo) Insert(_ context.Context, u domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if _, ok := f.users[u.Username]; ok {
		return domain.ErrUsernameAlreadyExists()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	f.users[u.Username] = u
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, username, hash, salt string, now int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[username]
	u.PwHash, u.PwSalt, u.PwChangeTime = hash, salt, now
	u.LastForgotValidated = 0
	f.users[username] = u
	return nil
}

func (f *fakeUserRepo) UpdateVerified(_ context.Context, username string, v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[username]
	u.Verified = v
	f.users[username] = u
	return nil
}

func (f *fakeUserRepo) UpdateToken(_ context.Context, username, token string, tokenTime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[username]
	u.Token, u.TokenTime = token, tokenTime
	f.users[username] = u
	return nil
}

func (f *fakeUserRepo) UpdateForgotValidated(_ context.Context, username string, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.users[username]
	u.TokenTime = 0
	u.LastForgotValidated = ts
	f.users[username] = u
	return nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeQueue struct {
	mu       sync.Mutex
	queued   map[string][]byte
	enqueues int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{queued: map[string][]byte{}}
}

func (f *fakeQueue) Enqueue(_ context.Context, username string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[username] = content
	f.enqueues++
	return nil
}

func (f *fakeQueue) body(username string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.queued[username])
}

/*
Service under test
*/

type testHarness struct {
	svc   *Service
	users *fakeUserRepo
	queue *fakeQueue
	now   *time.Time
	woken *int
	audit *[]string
}

func newTestService(t *testing.T) testHarness {
	t.Helper()

	users := newFakeUserRepo()
	queue := newFakeQueue()
	now := time.Unix(1_000_000, 0)
	woken := 0
	var actions []string

	svc := NewService(users, queue, Config{
		AdminUser:          "admin",
		AdminPasswordSHA1:  "40a4fc581df5955940ccd2dc2636cbc0d4bf4a2e", // unused unless a test sets it
		Confounder:         "pepper",
		EmailFrom:          "noreply@example.com",
		EmailTitle:         "Registration Email from example",
		EmailContactPerson: "help@example.com",
		ConfirmURL:         "https://example.com/sg",
	}).
		WithWake(func() { woken++ }).
		WithAudit(func(action string, _ map[string]string) { actions = append(actions, action) }).
		WithClock(func() time.Time { return now })

	return testHarness{svc: svc, users: users, queue: queue, now: &now, woken: &woken, audit: &actions}
}

func registered(t *testing.T, h testHarness, username string) domain.User {
	t.Helper()
	err := h.svc.Register(context.Background(), RegisterInput{
		Username: username,
		Password: "hunter2",
		Email:    username + "@example.com",
		IP:       "192.0.2.9",
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	u, err := h.users.Get(context.Background(), username)
	if err != nil {
		t.Fatalf("registered user missing: %v", err)
	}
	return u
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected domain error %q, got nil", code)
	}
	if !domain.Is(err, code) {
		t.Fatalf("expected domain error %q, got %v", code, err)
	}
}
