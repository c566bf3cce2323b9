package auth

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Store is the credential store consumed by the resolver and the login
// handlers. Lookups return (nil, nil) when no record exists; a non-nil
// error means the store itself failed.
type Store interface {
	FindSessionByToken(token string) (*Session, error)
	DeleteSession(token string) error
	FindUserByUUID(uuid string) (*User, error)
	CreateSession(userID string, expiresAt time.Time) (*Session, error)
	UpdateSessionExpiry(token string, expiresAt time.Time) error
}

// Outcome is the single classification produced for a request credential.
type Outcome int

const (
	// NoCredential: the request carried no session token at all.
	NoCredential Outcome = iota
	// InvalidCredential: the token is unknown to the store.
	InvalidCredential
	// Expired: the session existed but its expiry had passed. The stale
	// record has been deleted; resolving the same token again yields
	// InvalidCredential.
	Expired
	// Banned: the session's user is banned. The session has been deleted.
	Banned
	// Valid: the credential maps to a live session and an active user.
	Valid
)

// Resolution is the resolver's verdict. User and Session are set only when
// Outcome is Valid; BanReason only when Outcome is Banned.
type Resolution struct {
	Outcome   Outcome
	User      *User
	Session   *Session
	BanReason string
}

// Resolver turns a request-supplied token into a Resolution, applying
// expiry and ban checks and cleaning up stale sessions as it goes.
type Resolver struct {
	store Store
	now   func() time.Time
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// Resolve classifies the token. The check order is part of the contract:
// presence, then store lookup, then expiry, then user existence, then ban
// status. Each of the expiry/missing-user/ban failures deletes the session
// record before returning, so a later check can assume earlier cleanup
// already ran. Store failures are folded into InvalidCredential rather
// than surfaced as transport errors.
func (r *Resolver) Resolve(token string) Resolution {
	if token == "" {
		return Resolution{Outcome: NoCredential}
	}

	session, err := r.store.FindSessionByToken(token)
	if err != nil {
		log.Error().Err(err).Msg("session lookup failed")
		return Resolution{Outcome: InvalidCredential}
	}
	if session == nil {
		return Resolution{Outcome: InvalidCredential}
	}

	if session.ExpiresAt.Before(r.now()) {
		r.discard(token)
		return Resolution{Outcome: Expired}
	}

	user, err := r.store.FindUserByUUID(session.UserID)
	if err != nil {
		log.Error().Err(err).Msg("user lookup failed")
		return Resolution{Outcome: InvalidCredential}
	}
	if user == nil {
		r.discard(token)
		return Resolution{Outcome: InvalidCredential}
	}

	if user.Banned {
		r.discard(token)
		return Resolution{Outcome: Banned, BanReason: user.BanReason}
	}

	return Resolution{Outcome: Valid, User: user, Session: session}
}

func (r *Resolver) discard(token string) {
	if err := r.store.DeleteSession(token); err != nil {
		log.Error().Err(err).Msg("failed to delete stale session")
	}
}
