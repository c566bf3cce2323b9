package servers

import (
	"net/http"
	"time"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the public and owner-facing server endpoints.
func Routes(h *Handler, resolver *auth.Resolver) http.Handler {
	requireUser := middleware.RequireUser(resolver)
	optionalUser := middleware.OptionalUser(resolver)

	r := chi.NewRouter()
	r.Get("/", h.ListHandler)
	r.With(requireUser).Get("/@me", h.MineHandler)
	r.With(middleware.RateLimit(5*time.Minute, 10), requireUser).Post("/", h.CreateHandler)

	r.Route("/{uuid}", func(r chi.Router) {
		r.With(optionalUser).Get("/", h.GetHandler)
		r.With(requireUser).Get("/full", h.FullHandler)
		r.With(requireUser).Get("/analytics", h.AnalyticsHandler)
		r.With(requireUser).Put("/", h.UpdateHandler)
		r.With(requireUser).Delete("/", h.DeleteHandler)
		r.With(middleware.RateLimit(30*time.Second, 1), requireUser).Post("/", h.CommentHandler)
		r.With(requireUser).Post("/vote", h.VoteHandler)
		r.With(requireUser).Post("/verify", h.VerifyHandler)
	})
	return r
}

// AdminRoutes mounts the unrestricted server editor. The admin gate is
// applied where these are mounted.
func AdminRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Put("/{id}", h.AdminUpdateHandler)
	r.Post("/{id}/clear", h.AdminClearHandler)
	return r
}
