package domain

// Verification states for User.Verified. The jump from 1 to accepted is
// deliberate: intermediate values are reserved for moderation workflows.
const (
	VerifiedNone     = 0   // row created, verification email not yet dispatched
	VerifiedMailed   = 1   // verification email handed to the transport
	VerifiedAccepted = 100 // user clicked the confirm link
)

// User is a row in the users table. Hash, salt and token are 40 lowercase
// hex chars when set; Token is empty when no verify/reset token is active.
type User struct {
	Username            string
	CreationTime        int64
	IP                  string
	Email               string
	PwHash              string
	PwSalt              string
	PwChangeTime        int64
	Token               string
	Verified            int
	TokenTime           int64
	LastForgotValidated int64
}

// Session binds an opaque 40-hex id to a username ("" = anonymous) with an
// absolute expiry. LastSeen drives the idle timeout.
type Session struct {
	Name     string
	Username string
	Expire   int64
	LastSeen int64
}

// Anonymous reports whether the session is not bound to a user.
func (s Session) Anonymous() bool { return s.Username == "" }
