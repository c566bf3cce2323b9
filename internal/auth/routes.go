package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the OAuth endpoints. The user gate is passed in rather
// than imported, since the middleware package depends on this one.
func Routes(h *Handler, requireUser func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.LoginHandler)
	r.With(requireUser).Get("/logout", h.LogoutHandler)
	return r
}
