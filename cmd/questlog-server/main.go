package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/redsinal/questlog/internal/adapters/httpapi"
	"github.com/redsinal/questlog/internal/adapters/memorybus"
	"github.com/redsinal/questlog/internal/adapters/sqlite"
	"github.com/redsinal/questlog/internal/app"
	"github.com/redsinal/questlog/internal/buildinfo"
	"github.com/redsinal/questlog/internal/config"
	"github.com/redsinal/questlog/internal/domain"
)

func main() {
	def := config.Default()
	addr := flag.String("addr", def.Addr, "listen address (e.g. 127.0.0.1:8080)")
	dbPath := flag.String("db", def.DBPath, "sqlite path (e.g. questlog.db)")
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("app", "questlog-server").Logger()
	log.Logger = logger

	logger.Info().Interface("build", buildinfo.Current()).Str("db", *dbPath).Msg("starting")

	ctx := context.Background()
	db, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open db")
	}
	defer func() { _ = db.Close() }()

	bus := memorybus.New()
	prefs := sqlite.NewPreferencesRepository(db.SQL)

	fetcher := app.NewHTTPPageFetcher(def.FetchTimeout)
	scanner := app.NewUpdateScanner(logger.With().Str("component", "scanner").Logger(), fetcher, app.NewPatternExtractor())
	seriesSvc := app.NewSeriesService(logger.With().Str("component", "series").Logger(), prefs, domain.DefaultSeedCatalog(), scanner, bus)
	anilistSvc := app.NewAniListService(logger.With().Str("component", "anilist").Logger(), def.AniList, prefs)

	// First load walks the legacy formats and, on an empty store, seeds the
	// library from the built-in catalog over the network. Startup tolerates
	// unreachable pages; it only fails on storage errors.
	loadCtx, cancelLoad := context.WithTimeout(ctx, 2*time.Minute)
	if err := seriesSvc.Load(loadCtx); err != nil {
		cancelLoad()
		logger.Fatal().Err(err).Msg("failed to load library")
	}
	cancelLoad()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if def.ScanInterval > 0 {
		scheduler := app.NewScanScheduler(logger.With().Str("component", "scheduler").Logger(), seriesSvc, def.ScanInterval)
		go scheduler.Run(shutdownCtx)
		logger.Info().Dur("interval", def.ScanInterval).Msg("scan scheduler started")
	}

	srv := httpapi.NewServer(logger, seriesSvc, anilistSvc, bus)
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", *addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server crashed")
			stop()
		}
	}()

	<-shutdownCtx.Done()
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	logger.Info().Msg("bye")
}
