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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/animal-api/internal/cache"
	"github.com/Brownie44l1/animal-api/internal/handlers"
	"github.com/Brownie44l1/animal-api/internal/metrics"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP prediction server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg, classifier, err := setup(cmd)
	if err != nil {
		return err
	}
	defer classifier.Close()

	results, err := cache.New(cfg.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to create result cache: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	handler := handlers.NewHandler(classifier, results, m, handlers.Limits{
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxImagePixels: cfg.MaxImagePixels,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           handler.Routes(log.Logger, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("address", cfg.HTTPAddress).Str("model", classifier.Name()).Msg("Server starting")
	log.Info().Msg("Endpoints: GET /health, POST /predict, POST /predict/image, GET /metrics")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
