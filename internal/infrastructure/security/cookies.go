package security

import (
	"net/http"
	"time"
)

// SessionCookieName is the single cookie the subsystem owns.
const SessionCookieName = "id"

// SetSessionCookie installs the session cookie. Expires comes out in RFC 1123
// GMT via net/http; Max-Age is derived from the expiry so both attribute
// styles agree.
func SetSessionCookie(w http.ResponseWriter, sid string, expire time.Time, now time.Time) {
	maxAge := int(expire.Sub(now).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		Expires:  expire.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
	})
}

// ClearSessionCookie emits a deletion cookie for a stale session id. Callers
// must write it before any install cookie on the same response.
func ClearSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// ReadSessionID extracts the first well-formed session id from the request's
// cookies. Anything other than exactly 40 lowercase hex chars is treated as
// no session at all.
func ReadSessionID(r *http.Request) (string, bool) {
	for _, c := range r.Cookies() {
		if c.Name != SessionCookieName {
			continue
		}
		if !ValidHexHash(c.Value) {
			return "", false
		}
		return c.Value, true
	}
	return "", false
}
