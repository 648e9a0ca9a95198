package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey int

const requestIDContextKey contextKey = iota

// withRequestID wraps a handler so every inbound request carries a request
// id for the lifetime of the call: reused from an X-Request-Id header when
// the caller supplied one, otherwise freshly generated. The id is echoed
// back in the response header and stashed in the request context, where
// handleRunAlgorithm picks it up to pass to the controller — the same id
// that ends up on every downstream RPC and log line for this request,
// independent of the algorithm's own context id.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFrom recovers the id withRequestID attached to ctx, or "" if
// none was attached (a handler invoked outside the normal mux chain, e.g.
// a unit test).
func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
