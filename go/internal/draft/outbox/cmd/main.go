package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/draftcoord/go/internal/dbconfig"
	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
	"github.com/mcdev12/draftcoord/go/internal/draft/outbox"
)

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring malformed duration")
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := dbconfig.NewConfigFromEnv()
	dsn := cfg.DSN()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	jsCfg := outbox.DefaultJetStreamConfig()
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg.URL = url
	}
	publisher, err := outbox.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create JetStream publisher")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("close publisher")
		}
	}()

	clock := clockwork.NewRealClock()
	repo := outbox.NewSQLRepository(db, clock)

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	ltCfg.NotifyChannel = backend.NotifyChannel
	ltCfg.FallbackInterval = envDuration("FALLBACK_INTERVAL", ltCfg.FallbackInterval)

	listener, err := outbox.NewListener(repo, publisher, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	health := outbox.NewHealthChecker(listener, repo, db, publisher.Conn(), clock,
		envDuration("HEALTH_PENDING_THRESHOLD", 2*time.Minute))
	mux := http.NewServeMux()
	mux.Handle("/health", health)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", os.Getenv("HEALTH_PORT")),
		Handler: mux,
	}
	if server.Addr == ":" {
		server.Addr = ":8081"
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("channel", ltCfg.NotifyChannel).Msg("starting outbox relay")
		return listener.Start(ctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("relay exited unexpectedly")
		os.Exit(1)
	}
	log.Info().Msg("graceful shutdown complete")
}
