package transport

import (
	"net/http"

	"github.com/rpggio/weekly/internal/domain/activity"
)

// ClientSessionHeader carries the id of the client device making a change.
const ClientSessionHeader = "X-Client-Session-Id"

// ClientSessionMiddleware extracts X-Client-Session-Id and stores it in context.
func ClientSessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(ClientSessionHeader); id != "" {
			r = r.WithContext(activity.WithClientSession(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
