package testutil

import (
	"net/http"
	"time"

	"donation-ledger/pkg/domain"
	"donation-ledger/pkg/requestcontext"
)

// WithActor authenticates req as actor, the way the auth middleware would.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
