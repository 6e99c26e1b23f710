package response

import (
	"net/http"
	"time"

	"github.com/sessiongate/sessiongate/internal/domain"
	"github.com/sessiongate/sessiongate/internal/infrastructure/security"
)

// Redirect describes a post-form 303 answer. Cookie handling is ordered:
// a stale session id is deleted before the live one is installed, so agents
// that honor set-cookie sequentially never keep both.
type Redirect struct {
	Location string

	// DeleteSID, when set, emits a deletion cookie for that session id.
	DeleteSID string

	// Session, when non-nil, is installed as the new session cookie.
	Session *domain.Session

	Now time.Time
}

// SeeOther writes the 303 with an explicit zero Content-Length; browsers
// follow Location and never look at the body.
func SeeOther(w http.ResponseWriter, rd Redirect) {
	if rd.DeleteSID != "" {
		security.ClearSessionCookie(w, rd.DeleteSID)
	}
	if rd.Session != nil {
		security.SetSessionCookie(w, rd.Session.Name, time.Unix(rd.Session.Expire, 0), rd.Now)
	}

	w.Header().Set("Location", rd.Location)
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusSeeOther)
}
