package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// RequestLogger logs each request when verbose logging is on.
func RequestLogger(verbose bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !verbose {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("ip", clientIP(r)).
				Str("user_agent", r.UserAgent()).
				Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
