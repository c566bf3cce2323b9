// Command seed fills the database with demo users and servers for local
// development. It is idempotent.
package main

import (
	"context"

	"github.com/BlockBoard/BB-Backend/internal/auth"
	"github.com/BlockBoard/BB-Backend/internal/config"
	"github.com/BlockBoard/BB-Backend/internal/db"
	"github.com/BlockBoard/BB-Backend/internal/logging"
	"github.com/BlockBoard/BB-Backend/internal/seeds"
	"github.com/BlockBoard/BB-Backend/internal/servers"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logging.Init(cfg.LogLevel, cfg.Development())

	d, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := auth.Init(d); err != nil {
		log.Fatal().Err(err).Msg("Auth migration failed")
	}
	if err := servers.Init(d); err != nil {
		log.Fatal().Err(err).Msg("Listing migration failed")
	}

	if err := seeds.SeedAll(d); err != nil {
		log.Fatal().Err(err).Msg("Seeding failed")
	}
}
