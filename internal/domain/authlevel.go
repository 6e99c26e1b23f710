package domain

import "strconv"

// AuthLevel is the capability bitset computed for a request's identity.
type AuthLevel int

const (
	AuthLoggedIn   AuthLevel = 1
	AuthAdmin      AuthLevel = 2
	AuthVerified   AuthLevel = 4
	AuthForgotFlow AuthLevel = 8
)

// Satisfies reports whether every bit of required is present.
func (a AuthLevel) Satisfies(required AuthLevel) bool {
	return a&required == required
}

// String renders the bitset as a decimal, the form pages interpolate.
func (a AuthLevel) String() string {
	return strconv.Itoa(int(a))
}
