package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jhchabran/chaupal"
	"github.com/jhchabran/chaupal/authentication/session_auth"
	"github.com/jhchabran/chaupal/cmd"
	"github.com/jhchabran/chaupal/dataset"
	"github.com/jhchabran/chaupal/hooks/slackhook"
	"github.com/jhchabran/chaupal/memstore"
	"github.com/jhchabran/chaupal/notifier"
	"github.com/jhchabran/chaupal/pgstore"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := cmd.DefaultConfig()
	err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot read configuration")
	}
	logger := cmd.SetupLogger(cfg)

	// setup storage
	var store chaupal.Store
	switch cfg.Store {
	case cmd.StorePostgres:
		store = pgstore.New(cfg.PostgresAddr())
	default:
		recs, err := dataset.Default().Records(chaupal.NowFunc())
		if err != nil {
			logger.Fatal().Err(err).Msg("Cannot load dataset")
		}
		store = memstore.NewFromRecords(recs)
	}
	logger.Info().Str("store", cfg.Store).Msg("Using store")

	// setup authentication
	ll := logger.With().Str("component", "session auth").Logger()
	authService := session_auth.New(cfg.ServerSecret, ll)

	s := chaupal.NewServer(&chaupal.ServerConfig{
		Addr:        cfg.Addr,
		HotGravity:  cfg.HotGravity,
		HotTimebase: cfg.HotTimebase,
	}, logger, store, authService)

	if cfg.SlackWebhookURL != "" {
		hook := slackhook.New(cfg.SlackWebhookURL, cfg.BaseURL)
		s.AddPostHook("slack", hook.PostHook)
	}

	// Prepare connects the store, the notifier needs it ready
	err = s.Prepare()
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot prepare server")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := notifier.New(store, cfg.NotifyRecipients, logger.With().Str("component", "notifier").Logger())
	err = n.Start(ctx, cfg.NotifySchedule)
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot start notifier")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info().Msg("Shutting down")
		cancel()
		s.Stop()
	}()

	// fire the server
	err = s.Start()
	if err != nil {
		logger.Fatal().Err(err).Msg("Cannot start server")
	}
}
