package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/mentorspark/sessiond/internal/adapters/http"
	signalws "github.com/mentorspark/sessiond/internal/adapters/signal"
	"github.com/mentorspark/sessiond/internal/app"
	"github.com/mentorspark/sessiond/internal/auth"
	"github.com/mentorspark/sessiond/internal/clock"
	"github.com/mentorspark/sessiond/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Secret == "" {
		log.Fatal().Msg("secret must be set, refusing to sign tokens with an empty key")
	}

	clk := clock.Real{}
	presence := app.NewPresence()
	registry := app.NewRegistry(cfg.RoomCapacity, clk)
	rooms := app.NewRooms(cfg.EmptyRoomGrace, clk, registry.IsEmpty, presence)
	relay := app.NewRelay(registry, rooms, presence)
	issuer := auth.NewIssuer(cfg.Secret, cfg.TokenTTL, clk)
	limiter := signalws.NewJoinRateLimiter(cfg.JoinRateLimit, cfg.JoinRateWindow, clk)
	ctl := signalws.NewController(relay, presence, limiter, cfg)

	r := router.SetupRouter(ctx, cfg, issuer, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("sessiond started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
