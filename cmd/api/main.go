package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"math-io-server/internal/config"
	"math-io-server/internal/logging"
	"math-io-server/internal/server"
)

func gracefulShutdown(log zerolog.Logger, customServer *server.Server, httpServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("shutdown signal received, press Ctrl+C again to force")
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Stop accepting new sockets before closing the open ones.
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	if err := customServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	done <- true
}

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	customServer, httpServer, err := server.NewServer(startCtx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	done := make(chan bool, 1)
	go gracefulShutdown(log, customServer, httpServer, done)

	log.Info().Str("addr", httpServer.Addr).Msg("listening")
	err = httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server error")
	}

	<-done
	log.Info().Msg("graceful shutdown complete")
}
