package response

import (
	"net/http"

	appCtx "github.com/sessiongate/sessiongate/internal/pkg/context"
)

// RequestIDFromContext extracts request_id from context if you have a middleware that sets it.
func RequestIDFromContext(r *http.Request) string {
	return appCtx.GetRequestID(r.Context())
}
