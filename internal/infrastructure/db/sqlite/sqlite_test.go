package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sessiongate/sessiongate/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sessions.sqlite3"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testUser(name string) domain.User {
	return domain.User{
		Username:     name,
		CreationTime: 1000,
		IP:           "192.0.2.1",
		Email:        name + "@example.com",
		PwHash:       strings.Repeat("1", 40),
		PwSalt:       strings.Repeat("2", 40),
		Token:        strings.Repeat("3", 40),
		Verified:     domain.VerifiedNone,
		TokenTime:    1000,
	}
}

func TestUserRepoInsertAndLookups(t *testing.T) {
	t.Parallel()

	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, testUser("alice")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	u, err := repo.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.Email != "alice@example.com" || u.Verified != domain.VerifiedNone {
		t.Fatalf("unexpected row: %+v", u)
	}

	if _, err := repo.Get(ctx, "nobody"); !domain.Is(err, "user_not_found") {
		t.Fatalf("expected user_not_found, got %v", err)
	}

	// Email lookup normalizes case and whitespace.
	if _, err := repo.GetByEmail(ctx, "  ALICE@Example.com "); err != nil {
		t.Fatalf("get by email: %v", err)
	}

	if err := repo.Insert(ctx, testUser("alice")); !domain.Is(err, "username_already_exists") {
		t.Fatalf("expected username_already_exists, got %v", err)
	}
}

func TestUserRepoTokenLifecycle(t *testing.T) {
	t.Parallel()

	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	u := testUser("bob")
	if err := repo.Insert(ctx, u); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Unverified token resolves without the verified filter.
	got, err := repo.GetByToken(ctx, u.Token, false)
	if err != nil || got.Username != "bob" {
		t.Fatalf("GetByToken = %+v, %v", got, err)
	}

	// The verified filter rejects the same token while verified != 100.
	if _, err := repo.GetByToken(ctx, u.Token, true); !domain.Is(err, "user_not_found") {
		t.Fatalf("expected miss for unverified user, got %v", err)
	}

	if err := repo.UpdateVerified(ctx, "bob", domain.VerifiedAccepted); err != nil {
		t.Fatalf("update verified: %v", err)
	}
	if _, err := repo.GetByToken(ctx, u.Token, true); err != nil {
		t.Fatalf("verified token lookup: %v", err)
	}

	// Consuming the forgot link zeroes token_time, killing the link.
	if err := repo.UpdateForgotValidated(ctx, "bob", 2000); err != nil {
		t.Fatalf("update forgot validated: %v", err)
	}
	if _, err := repo.GetByToken(ctx, u.Token, true); !domain.Is(err, "user_not_found") {
		t.Fatalf("expected consumed token to miss, got %v", err)
	}

	got, _ = repo.Get(ctx, "bob")
	if got.LastForgotValidated != 2000 || got.TokenTime != 0 {
		t.Fatalf("forgot bookkeeping wrong: %+v", got)
	}
}

func TestUserRepoUpdatePasswordResetsGrace(t *testing.T) {
	t.Parallel()

	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, testUser("carol")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.UpdateForgotValidated(ctx, "carol", 5000); err != nil {
		t.Fatalf("seed grace: %v", err)
	}

	newHash := strings.Repeat("7", 40)
	newSalt := strings.Repeat("8", 40)
	if err := repo.UpdatePassword(ctx, "carol", newHash, newSalt, 6000); err != nil {
		t.Fatalf("update password: %v", err)
	}

	u, _ := repo.Get(ctx, "carol")
	if u.PwHash != newHash || u.PwSalt != newSalt || u.PwChangeTime != 6000 {
		t.Fatalf("password fields wrong: %+v", u)
	}
	if u.LastForgotValidated != 0 {
		t.Fatalf("grace window must be single use, got %d", u.LastForgotValidated)
	}
}

func TestUserRepoMarkMailedOnlyFromNew(t *testing.T) {
	t.Parallel()

	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, testUser("dave")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.MarkMailed(ctx, "dave"); err != nil {
		t.Fatalf("mark mailed: %v", err)
	}
	u, _ := repo.Get(ctx, "dave")
	if u.Verified != domain.VerifiedMailed {
		t.Fatalf("verified = %d, want %d", u.Verified, domain.VerifiedMailed)
	}

	// Already accepted accounts stay accepted.
	if err := repo.UpdateVerified(ctx, "dave", domain.VerifiedAccepted); err != nil {
		t.Fatalf("update verified: %v", err)
	}
	if err := repo.MarkMailed(ctx, "dave"); err != nil {
		t.Fatalf("mark mailed again: %v", err)
	}
	u, _ = repo.Get(ctx, "dave")
	if u.Verified != domain.VerifiedAccepted {
		t.Fatalf("mark mailed disturbed accepted state: %d", u.Verified)
	}
}

func TestUserRepoStaleGC(t *testing.T) {
	t.Parallel()

	repo := NewUserRepo(openTestDB(t))
	ctx := context.Background()

	stale := testUser("stale")
	stale.CreationTime = 100
	fresh := testUser("fresh")
	fresh.CreationTime = 101
	kept := testUser("kept")
	kept.CreationTime = 50
	kept.Verified = domain.VerifiedAccepted

	for _, u := range []domain.User{stale, fresh, kept} {
		if err := repo.Insert(ctx, u); err != nil {
			t.Fatalf("insert %s: %v", u.Username, err)
		}
	}

	if err := repo.DeleteStaleUnverified(ctx, 100); err != nil {
		t.Fatalf("gc: %v", err)
	}

	if _, err := repo.Get(ctx, "stale"); !domain.Is(err, "user_not_found") {
		t.Fatalf("stale unverified user must be removed, got %v", err)
	}
	if _, err := repo.Get(ctx, "fresh"); err != nil {
		t.Fatalf("fresh user must survive the cutoff: %v", err)
	}
	if _, err := repo.Get(ctx, "kept"); err != nil {
		t.Fatalf("verified user must never be collected: %v", err)
	}
}

func TestSessionRepoDeleteExpired(t *testing.T) {
	t.Parallel()

	repo := NewSessionRepo(openTestDB(t))
	ctx := context.Background()

	now := int64(10_000)
	mk := func(name string, expire, lastSeen int64) {
		t.Helper()
		err := repo.Insert(ctx, domain.Session{
			Name: strings.Repeat(name, 40), Username: "u", Expire: expire, LastSeen: lastSeen,
		})
		if err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}

	mk("a", now+100, now) // live
	mk("b", now, now)     // absolute expiry boundary: expire <= now goes
	mk("c", now+100, now-601)
	mk("d", now+100, now-600) // idle boundary: exactly the ttl survives
	mk("e", now+100, 0)       // migrated row, no last_seen, survives

	n, err := repo.DeleteExpired(ctx, now, 600)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d sessions, want 2", n)
	}

	for name, want := range map[string]bool{"a": true, "b": false, "c": false, "d": true, "e": true} {
		_, err := repo.Get(ctx, strings.Repeat(name, 40))
		alive := err == nil
		if alive != want {
			t.Errorf("session %s alive = %v, want %v", name, alive, want)
		}
	}

	// Idempotent: a second sweep finds nothing.
	n, err = repo.DeleteExpired(ctx, now, 600)
	if err != nil || n != 0 {
		t.Fatalf("second sweep = %d, %v", n, err)
	}
}

func TestSessionRepoTouchAndUpdate(t *testing.T) {
	t.Parallel()

	repo := NewSessionRepo(openTestDB(t))
	ctx := context.Background()
	sid := strings.Repeat("f", 40)

	if err := repo.Insert(ctx, domain.Session{Name: sid, Expire: 100, LastSeen: 10}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Touch(ctx, sid, 42); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := repo.Update(ctx, sid, "alice", 500); err != nil {
		t.Fatalf("update: %v", err)
	}

	s, err := repo.Get(ctx, sid)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.Username != "alice" || s.Expire != 500 || s.LastSeen != 42 {
		t.Fatalf("unexpected session: %+v", s)
	}

	if _, err := repo.Get(ctx, strings.Repeat("0", 40)); !domain.Is(err, "session_not_found") {
		t.Fatalf("expected session_not_found, got %v", err)
	}
}

func TestEmailQueueSupersede(t *testing.T) {
	t.Parallel()

	q := NewEmailQueue(openTestDB(t))
	ctx := context.Background()

	if err := q.Enqueue(ctx, "alice", []byte("first")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "alice", []byte("second")); err != nil {
		t.Fatalf("supersede: %v", err)
	}

	name, err := q.PeekOne(ctx)
	if err != nil || name != "alice" {
		t.Fatalf("peek = %q, %v", name, err)
	}
	body, err := q.Body(ctx, "alice")
	if err != nil || string(body) != "second" {
		t.Fatalf("body = %q, %v; a later enqueue must supersede", body, err)
	}

	if err := q.Delete(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := q.PeekOne(ctx); !domain.Is(err, "nothing_queued") {
		t.Fatalf("expected nothing_queued, got %v", err)
	}
}

func TestEmailQueueContentCap(t *testing.T) {
	t.Parallel()

	q := NewEmailQueue(openTestDB(t))
	ctx := context.Background()

	big := strings.Repeat("x", MaxContentSize+1)
	if err := q.Enqueue(ctx, "alice", []byte(big)); !domain.Is(err, "invalid_field") {
		t.Fatalf("oversized content must be rejected, got %v", err)
	}
	if err := q.Enqueue(ctx, "", []byte("hi")); !domain.Is(err, "missing_field") {
		t.Fatalf("empty username must be rejected, got %v", err)
	}
}
