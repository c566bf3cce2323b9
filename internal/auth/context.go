package auth

import "context"

type contextKey string

const (
	contextUserKey    contextKey = "user"
	contextSessionKey contextKey = "session"
)

// WithIdentity attaches a resolved user and session to the request context.
func WithIdentity(ctx context.Context, user *User, session *Session) context.Context {
	ctx = context.WithValue(ctx, contextUserKey, user)
	return context.WithValue(ctx, contextSessionKey, session)
}

// UserFromContext returns the authenticated user, if any. Handlers behind
// an optional gate must handle the anonymous (nil, false) case.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(contextUserKey).(*User)
	return user, ok && user != nil
}

// SessionFromContext returns the live session attached by the gate.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(contextSessionKey).(*Session)
	return session, ok && session != nil
}
