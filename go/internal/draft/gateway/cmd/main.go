package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/draftcoord/go/internal/draft/gateway"
	"github.com/mcdev12/draftcoord/go/internal/draft/rpc"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	port := getEnv("GATEWAY_PORT", "8082")
	natsURL := getEnv("NATS_URL", "nats://localhost:4222")
	draftdURL := getEnv("DRAFTD_URL", "http://localhost:8080")

	log.Info().
		Str("nats_url", natsURL).
		Str("draftd_url", draftdURL).
		Str("port", port).
		Msg("starting draft gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Snapshots come from draftd over the same RPC client sessions use.
	fetcher := rpc.NewClient(&http.Client{Timeout: 10 * time.Second}, draftdURL)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.JetStreamConfig.URL = natsURL
	gatewayConfig.JetStreamConfig.ConsumerName = getEnv("GATEWAY_CONSUMER", gatewayConfig.JetStreamConfig.ConsumerName)

	gatewayService, err := gateway.NewService(ctx, gatewayConfig, fetcher)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !gatewayService.NATSConnected() {
			http.Error(w, "NATS disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Service string                  `json:"service"`
			Stats   gateway.ConnectionStats `json:"stats"`
		}{"draft-gateway", gatewayService.Stats()})
	})

	// No WriteTimeout: WebSocket connections are long-lived and manage
	// their own deadlines.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", port),
		Handler:     h2c.NewHandler(gateway.CORSMiddleware(mux), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gatewayService.Start(ctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("draft gateway stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("draft gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
