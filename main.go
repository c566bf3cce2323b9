package main

import (
	"context"
	"net/http"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/captcha"
	"github.com/BlockBoard/BB-Backend/internal/config"
	"github.com/BlockBoard/BB-Backend/internal/db"
	"github.com/BlockBoard/BB-Backend/internal/discord"
	"github.com/BlockBoard/BB-Backend/internal/httputil"
	"github.com/BlockBoard/BB-Backend/internal/logging"
	"github.com/BlockBoard/BB-Backend/internal/middleware"
	"github.com/BlockBoard/BB-Backend/internal/servers"
	"github.com/BlockBoard/BB-Backend/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load(context.Background())
	if err != nil {
		logging.Init("info", true)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.LogLevel, cfg.Development())

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	log.Info().Msg("connected to database")

	if err := auth.Init(database); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate auth tables")
	}
	if err := servers.Init(database); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate listing tables")
	}

	store := auth.NewStore(database)
	resolver := auth.NewResolver(store)

	dc := discord.NewClient(cfg.Discord.ClientID, cfg.Discord.ClientSecret, cfg.Discord.RedirectURI)
	authHandler := auth.NewHandler(store, dc, cfg)

	guard := servers.NewVoteGuard(&servers.GormVoteStore{DB: database})
	serverHandler := servers.NewHandler(
		database, guard, servers.NewVerifier(),
		captcha.NewVerifier(cfg.Recaptcha.Secret), cfg,
	)
	userHandler := users.NewHandler(database)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(cfg.VerboseLog))
	r.Use(middleware.CORS(cfg.Origins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Server is up!\n"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Mount("/oauth", auth.Routes(authHandler, middleware.RequireUser(resolver)))
		r.Mount("/users", users.Routes(userHandler, resolver))
		r.Mount("/servers", servers.Routes(serverHandler, resolver))
		r.With(middleware.RequireAdmin(resolver)).
			Mount("/admin/servers", servers.AdminRoutes(serverHandler))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Write(w, http.StatusNotFound, httputil.Response{
			Success: false,
			Message: "Unknown endpoint.",
		})
	})

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := http.ListenAndServe("0.0.0.0:"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
