package domain

import "testing"

func TestAuthLevelSatisfies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		have, need AuthLevel
		want       bool
	}{
		{0, 0, true},
		{AuthLoggedIn, AuthLoggedIn, true},
		{AuthLoggedIn, AuthLoggedIn | AuthVerified, false},
		{AuthLoggedIn | AuthVerified, AuthLoggedIn | AuthVerified, true},
		{AuthLoggedIn | AuthAdmin | AuthVerified, AuthAdmin, true},
		{AuthForgotFlow, AuthLoggedIn, false},
		{0, AuthLoggedIn, false},
	}
	for _, c := range cases {
		if got := c.have.Satisfies(c.need); got != c.want {
			t.Errorf("%d.Satisfies(%d) = %v, want %v", c.have, c.need, got, c.want)
		}
	}
}

func TestAuthLevelString(t *testing.T) {
	t.Parallel()

	if s := (AuthLoggedIn | AuthVerified).String(); s != "5" {
		t.Fatalf("String() = %q, want \"5\"", s)
	}
	if s := AuthLevel(0).String(); s != "0" {
		t.Fatalf("String() = %q, want \"0\"", s)
	}
}
