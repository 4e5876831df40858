// Package net holds request scoped ids and the transport error envelope
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type userKey struct{}

// WithUser stores the authenticated caller id; an empty id is ignored
func WithUser(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the caller id set by WithUser
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userKey{}).(string)
	return v
}

// RequestID returns the id chi's RequestID middleware put on ctx
func RequestID(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}
