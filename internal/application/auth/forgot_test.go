package auth

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sessiongate/sessiongate/internal/domain"
)

func forgotInput(by string) ForgotInput {
	in := ForgotInput{
		PostGood: "/post-forgot-ok.html",
		PostBad:  "/post-forgot-fail.html",
		IP:       "192.0.2.9",
	}
	if by == "email" {
		in.Email = "alice@example.com"
	} else {
		in.Username = "alice"
	}
	return in
}

func TestForgotInit_ByUsernameAndByEmail(t *testing.T) {
	t.Parallel()

	for _, by := range []string{"username", "email"} {
		by := by
		t.Run(by, func(t *testing.T) {
			t.Parallel()

			h := newTestService(t)
			u := registered(t, h, "alice")
			ctx := context.Background()

			if err := h.svc.ForgotInit(ctx, forgotInput(by)); err != nil {
				t.Fatalf("forgot init: %v", err)
			}

			got, _ := h.users.Get(ctx, "alice")
			if got.Token == u.Token {
				t.Fatalf("reset must issue a fresh token")
			}
			if got.TokenTime != h.now.Unix() {
				t.Fatalf("token_time = %d, want %d", got.TokenTime, h.now.Unix())
			}

			body := h.queue.body("alice")
			if !strings.Contains(body, "Subject: Password reset request") {
				t.Fatalf("reset email missing subject: %q", body)
			}
			link := "https://example.com/sg/forgot?token=" + got.Token +
				"&good=" + url.QueryEscape("/post-forgot-ok.html") +
				"&bad=" + url.QueryEscape("/post-forgot-fail.html")
			if !strings.Contains(body, link) {
				t.Fatalf("reset email missing link %q in %q", link, body)
			}
		})
	}
}

func TestForgotInit_UnknownUser(t *testing.T) {
	t.Parallel()

	h := newTestService(t)
	err := h.svc.ForgotInit(context.Background(), ForgotInput{Username: "ghost", PostGood: "a", PostBad: "b"})
	requireCode(t, err, "user_not_found")
}

func TestForgotConsume_RequiresVerifiedAccount(t *testing.T) {
	t.Parallel()

	h := newTestService(t)
	registered(t, h, "alice")
	ctx := context.Background()

	if err := h.svc.ForgotInit(ctx, forgotInput("username")); err != nil {
		t.Fatalf("forgot init: %v", err)
	}
	u, _ := h.users.Get(ctx, "alice")

	// Account still unverified: link must not work.
	_, err := h.svc.ForgotConsume(ctx, u.Token)
	requireCode(t, err, "token_invalid")

	_ = h.users.UpdateVerified(ctx, "alice", domain.VerifiedAccepted)

	username, err := h.svc.ForgotConsume(ctx, u.Token)
	if err != nil || username != "alice" {
		t.Fatalf("consume = %q, %v", username, err)
	}

	got, _ := h.users.Get(ctx, "alice")
	if got.TokenTime != 0 {
		t.Fatalf("consume must zero token_time")
	}
	if got.LastForgotValidated != h.now.Unix() {
		t.Fatalf("grace timestamp = %d, want %d", got.LastForgotValidated, h.now.Unix())
	}

	// The link is single use.
	_, err = h.svc.ForgotConsume(ctx, u.Token)
	requireCode(t, err, "token_invalid")
}

func TestChangePassword_GraceWindowBoundaries(t *testing.T) {
	t.Parallel()

	h := newTestService(t)
	registered(t, h, "alice")
	ctx := context.Background()

	_ = h.users.UpdateVerified(ctx, "alice", domain.VerifiedAccepted)
	if err := h.svc.ForgotInit(ctx, forgotInput("username")); err != nil {
		t.Fatalf("forgot init: %v", err)
	}
	u, _ := h.users.Get(ctx, "alice")
	if _, err := h.svc.ForgotConsume(ctx, u.Token); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// 299 s after the click: change without the old password succeeds.
	*h.now = h.now.Add(299 * time.Second)
	err := h.svc.ChangePassword(ctx, ChangeInput{NewPassword: "fresh-pw", SessionUser: "alice"})
	if err != nil {
		t.Fatalf("change inside grace: %v", err)
	}
	if _, err := h.svc.Login(ctx, "alice", "fresh-pw"); err != nil {
		t.Fatalf("login with changed password: %v", err)
	}

	// The grace window is single use; a second passwordless change fails.
	err = h.svc.ChangePassword(ctx, ChangeInput{NewPassword: "again", SessionUser: "alice"})
	requireCode(t, err, "invalid_credentials")
}

func TestChangePassword_GraceWindowExpired(t *testing.T) {
	t.Parallel()

	h := newTestService(t)
	registered(t, h, "alice")
	ctx := context.Background()

	_ = h.users.UpdateVerified(ctx, "alice", domain.VerifiedAccepted)
	if err := h.svc.ForgotInit(ctx, forgotInput("username")); err != nil {
		t.Fatalf("forgot init: %v", err)
	}
	u, _ := h.users.Get(ctx, "alice")
	if _, err := h.svc.ForgotConsume(ctx, u.Token); err != nil {
		t.Fatalf("consume: %v", err)
	}

	// 301 s after the click the window is shut; curpw is required again.
	*h.now = h.now.Add(301 * time.Second)
	err := h.svc.ChangePassword(ctx, ChangeInput{NewPassword: "fresh-pw", SessionUser: "alice"})
	requireCode(t, err, "invalid_credentials")

	// With valid current credentials the change still works.
	err = h.svc.ChangePassword(ctx, ChangeInput{
		Username: "alice", CurPassword: "hunter2", NewPassword: "fresh-pw",
	})
	if err != nil {
		t.Fatalf("credentialed change: %v", err)
	}
}

func TestChangePassword_RequiresCurrentPassword(t *testing.T) {
	t.Parallel()

	h := newTestService(t)
	registered(t, h, "alice")
	ctx := context.Background()

	err := h.svc.ChangePassword(ctx, ChangeInput{
		Username: "alice", CurPassword: "wrong", NewPassword: "x",
	})
	requireCode(t, err, "invalid_credentials")

	err = h.svc.ChangePassword(ctx, ChangeInput{Username: "alice", CurPassword: "hunter2", NewPassword: ""})
	requireCode(t, err, "missing_field")
}
