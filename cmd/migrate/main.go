package main

import (
	"flag"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/config"
	"github.com/Rrens/reframe-journal/internal/logging"
	"github.com/Rrens/reframe-journal/internal/repository/postgres"
)

func main() {
	source := flag.String("source", "file://migrations", "migration source URL")
	down := flag.Int("down", 0, "roll back this many migrations instead of applying")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("source", *source).
		Msg("Connecting to database")

	if *down > 0 {
		if err := postgres.RollbackMigrations(cfg.Database.DSN(), *source, *down); err != nil {
			log.Fatal().Err(err).Msg("Rollback failed")
		}
		return
	}

	if err := postgres.RunMigrations(cfg.Database.DSN(), *source); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
