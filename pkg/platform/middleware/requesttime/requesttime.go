// Package requesttime provides middleware for request-scoped time.
// Every operation within one HTTP request sees the same "now", so a log entry
// and the record it references carry consistent timestamps.
package requesttime

import (
	"net/http"
	"time"

	"truckgate/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
