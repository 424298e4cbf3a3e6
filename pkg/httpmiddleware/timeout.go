package httpmiddleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout returns a middleware that bounds each request with a deadline.
// Handlers and repositories observe it through the request context, so a
// slow database call fails with context.DeadlineExceeded instead of hanging
// on transport defaults.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
