package middleware

import (
	"net"
	"net/http"
	"time"

	"donation-ledger/pkg/requestcontext"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestContext copies the chi request id, the client address and a single
// request-scoped "now" into the request context. Mount it after chi's
// RequestID and RealIP.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := chimw.GetReqID(ctx); id != "" {
			ctx = requestcontext.WithRequestID(ctx, id)
			w.Header().Set("X-Request-Id", id)
		}
		ctx = requestcontext.WithClientIP(ctx, clientIP(r.RemoteAddr))
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
