// Command hematited runs the Hematite event store as a standalone HTTP
// service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cantido/hematite/internal/api"
	"github.com/cantido/hematite/internal/auth"
	"github.com/cantido/hematite/internal/config"
	"github.com/cantido/hematite/internal/httpapi"
	"github.com/cantido/hematite/internal/logging"
	"github.com/cantido/hematite/internal/metrics"
	"github.com/cantido/hematite/internal/registry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hematited:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("discovering streams", zap.String("streams_dir", cfg.StreamsDir))
	reg, err := registry.New(cfg.StreamsDir)
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	facade := api.New(reg)

	logger.Info("performing OIDC discovery", zap.String("oidc_url", cfg.OIDCURL))
	verifier, err := auth.NewVerifier(ctx, cfg.OIDCURL, cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	m := metrics.New()
	router := httpapi.NewRouter(facade, verifier, m, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
}
