// Package middleware holds the access gate policies and the request-level
// plumbing (CORS, rate limiting, request logging) shared by all routes.
package middleware

import (
	"net/http"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/httputil"
)

// SessionCookie is the cookie carrying the opaque session token.
const SessionCookie = "session"

// One shared message for missing, unknown, and expired credentials so the
// caller cannot tell which failure mode occurred.
const msgInvalidSession = "An invalid session was provided."

// SessionToken extracts the session token from the request, or "" when the
// cookie is absent.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// RequireUser admits only requests with a valid session. The resolved user
// and session are attached to the request context. Banned users get a 403
// carrying the ban reason; every other failure is the same 401.
func RequireUser(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(SessionToken(r))
			switch res.Outcome {
			case auth.Valid:
				ctx := auth.WithIdentity(r.Context(), res.User, res.Session)
				next.ServeHTTP(w, r.WithContext(ctx))
			case auth.Banned:
				httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
					"Your account is banned from the server list. Reason: "+res.BanReason))
			default:
				httputil.Fail(w, httputil.Errorf(httputil.KindUnauthenticated, msgInvalidSession))
			}
		})
	}
}

// OptionalUser attaches the user and session when the credential is valid
// and otherwise lets the request through anonymously. Used by endpoints
// whose response depends on the viewer but that anonymous viewers may hit.
// Stale-session cleanup still runs inside the resolver.
func OptionalUser(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(SessionToken(r))
			if res.Outcome == auth.Valid {
				ctx := auth.WithIdentity(r.Context(), res.User, res.Session)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is RequireUser plus an admin check. A valid non-admin
// session gets a distinct 403 and is left intact.
func RequireAdmin(resolver *auth.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(SessionToken(r))
			switch res.Outcome {
			case auth.Valid:
				if !res.User.Admin {
					httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
						"You do not have permission to access this endpoint."))
					return
				}
				ctx := auth.WithIdentity(r.Context(), res.User, res.Session)
				next.ServeHTTP(w, r.WithContext(ctx))
			case auth.Banned:
				httputil.Fail(w, httputil.Errorf(httputil.KindForbidden,
					"Your account is banned from the server list. Reason: "+res.BanReason))
			default:
				httputil.Fail(w, httputil.Errorf(httputil.KindUnauthenticated, msgInvalidSession))
			}
		})
	}
}

// CORS echoes the origin back only when it is on the allow-list.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization")
			}

			w.Header().Set("Access-Control-Expose-Headers",
				"Retry-After, RateLimit-Reset, RateLimit-Limit, RateLimit-Remaining")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
