package middleware

import (
	"context"

	"reviewflow/internal/domain/performance"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyUser      ctxKey = "user"
)

func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return value
	}
	return ""
}

// GetUser returns the authenticated actor placed on the context by Auth.
func GetUser(ctx context.Context) (performance.ActorContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(performance.ActorContext)
	return user, ok
}

// WithUser attaches an actor to ctx. Handlers tests use it to bypass token parsing.
func WithUser(ctx context.Context, user performance.ActorContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}
