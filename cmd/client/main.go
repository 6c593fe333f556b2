package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autofighter/client/internal/api"
	"github.com/autofighter/client/internal/app"
	"github.com/autofighter/client/internal/config"
	"github.com/autofighter/client/internal/discovery"
	"github.com/autofighter/client/internal/music"
	"github.com/autofighter/client/internal/music/ebitenaudio"
	"github.com/autofighter/client/internal/overlay"
	"github.com/autofighter/client/internal/runstate"
	"github.com/autofighter/client/internal/transport"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadRuntime()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	dataDir, err := config.Dir()
	if err != nil {
		log.Fatal().Err(err).Msg("no usable data directory")
	}
	settingsStore := config.NewSettingsStore(dataDir)
	settings := settingsStore.Load()
	runs := runstate.NewStore(dataDir)

	clock := clockwork.NewRealClock()
	resolver := discovery.NewResolver(discovery.Config{
		Override:   cfg.APIBase,
		Candidates: cfg.CandidateURLs(),
		Fallback:   cfg.FallbackURL(),
	}, &http.Client{}, clock)

	overlayCh := overlay.NewChannel()
	httpClient := &http.Client{Timeout: 30 * time.Second}
	tclient := transport.NewClient(httpClient, resolver, overlayCh)
	apiClient := api.NewClient(tclient)

	library := loadLibrary(cfg)
	factory := ebitenaudio.NewFactory(44100)
	musicEngine := music.NewEngine(factory, library, clock, music.EngineOptions{})

	runtime := app.New(app.Options{
		API:      apiClient,
		Overlay:  overlayCh,
		Music:    musicEngine,
		Library:  library,
		Resolver: resolver,
		Runs:     runs,
		Settings: settings,
		Clock:    clock,
		Policy:   music.DefaultPolicy(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runtime.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("backend not ready, waiting for it to come up")
	}
	log.Info().
		Str("instance", tclient.Instance()).
		Str("base", resolver.Cached()).
		Msg("client runtime started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	runtime.Shutdown()
	if err := settingsStore.Save(settings); err != nil {
		log.Warn().Err(err).Msg("could not save settings")
	}
	cancel()
}

func loadLibrary(cfg config.Runtime) *music.Library {
	if cfg.MusicManifest != "" {
		lib, err := music.LoadManifest(cfg.MusicManifest)
		if err == nil {
			return lib
		}
		log.Warn().Err(err).Str("manifest", cfg.MusicManifest).Msg("music manifest unreadable")
	}
	lib, err := music.LoadDir(cfg.MusicDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.MusicDir).Msg("no music library")
		return music.NewLibrary()
	}
	return lib
}
