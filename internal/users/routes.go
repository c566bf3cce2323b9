package users

import (
	"net/http"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the user-facing and user-admin endpoints.
func Routes(h *Handler, resolver *auth.Resolver) http.Handler {
	requireUser := middleware.RequireUser(resolver)
	requireAdmin := middleware.RequireAdmin(resolver)

	r := chi.NewRouter()
	r.With(requireUser).Get("/@me", h.MeHandler)
	r.Get("/{uuid}", h.ProfileHandler)
	r.With(requireAdmin).Get("/{uuid}/full", h.FullHandler)
	r.With(requireAdmin).Delete("/{uuid}", h.DeleteHandler)
	r.With(requireAdmin).Post("/{uuid}/ban", h.BanHandler)
	r.With(requireAdmin).Post("/{uuid}/unban", h.UnbanHandler)
	return r
}
