package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/seed"
	"github.com/ariefcatur/go-storefront/internal/subscriptions"
	"github.com/ariefcatur/go-storefront/internal/users"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	path := flag.String("file", cfg.SeedFile, "seed YAML file")
	flag.Parse()

	log := logging.New(cfg.LogLevel, cfg.LogPretty, cfg.ServiceName+"-seed")

	f, err := seed.Load(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("load seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer db.Close()

	s := &seed.Seeder{
		Users:    users.NewService(&users.Repo{DB: db}, cfg.JWTSecret, cfg.JWTTTL),
		Plans:    &subscriptions.Repo{DB: db},
		Products: &catalog.Repo{DB: db},
		Log:      log,
	}
	if err := s.Apply(ctx, f); err != nil {
		db.Close()
		log.Fatal().Err(err).Msg("seed failed")
	}
	log.Info().Msg("seed complete")
}
