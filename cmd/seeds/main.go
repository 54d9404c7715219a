package main

import (
	"flag"
	"os"

	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/cmd"
	"github.com/jhchabran/chaupal/dataset"
	"github.com/jhchabran/chaupal/pgstore"
	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("dataset", "", "path to a dataset file, defaults to the bundled one")
	flag.Parse()

	cfg := cmd.DefaultConfig()
	err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot read configuration")
	}
	logger := cmd.SetupLogger(cfg)
	logger.Info().Msg("Seeding database")

	ds := dataset.Default()
	if *path != "" {
		f, err := os.Open(*path)
		if err != nil {
			logger.Fatal().Err(err).Msg("Cannot open dataset")
		}
		ds, err = dataset.Load(f)
		f.Close()
		if err != nil {
			logger.Fatal().Err(err).Str("path", *path).Msg("Cannot load dataset")
		}
	}

	recs, err := ds.Records(chaupal.NowFunc())
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid dataset")
	}

	pg := pgstore.New(cfg.PostgresAddr())
	err = pg.Connect()
	if err != nil {
		logger.Fatal().Err(err).Msg("Can't connect to database")
	}
	defer pg.DB().Close()

	// seeding starts from a blank database
	err = pg.Truncate()
	if err != nil {
		logger.Fatal().Err(err).Msg("Can't truncate tables")
	}

	err = pg.Seed(recs)
	if err != nil {
		logger.Fatal().Err(err).Msg("Can't seed database")
	}

	logger.Info().
		Int("users", len(recs.Users)).
		Int("posts", len(recs.Posts)).
		Int("communities", len(recs.Communities)).
		Int("events", len(recs.Events)).
		Msg("Database seeded")
}
