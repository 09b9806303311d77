package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/compose-market/connector/internal/api"
	"github.com/compose-market/connector/internal/config"
	"github.com/compose-market/connector/internal/identity"
	"github.com/compose-market/connector/internal/service/inmemory"
	"github.com/compose-market/connector/internal/sources"
	"github.com/compose-market/connector/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog API server",
	Long: `Start the catalog API server to serve reconciled MCP server metadata.

The server requires a configuration file (--config) that specifies:
- The ordered list of catalog sources (file or API) with their origins
- HTTP server settings

See examples/ directory for sample configurations.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time
	serverRequestTimeout   = 10 * time.Second // Catalog API should respond quickly
	serverReadTimeout      = 10 * time.Second // Enough for headers and small requests
	serverWriteTimeout     = 15 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second // Keep connections alive for reuse
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := viper.GetString("address")
	if address == "" {
		address = cfg.GetAddress()
	}

	slog.Info("Starting catalog API server",
		"address", address,
		"catalog", cfg.GetCatalogName(),
		"source_count", len(cfg.Sources))

	// Metrics registry with process/go collectors plus catalog collectors
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(promRegistry)

	// Wire the source pipeline: normalizer -> handlers -> provider
	normalizer := identity.NewNormalizer(nil)
	factory := sources.NewSourceHandlerFactory(normalizer)
	provider := sources.NewCatalogProvider(cfg, factory)

	svc, err := inmemory.New(ctx, provider, inmemory.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to create catalog service: %w", err)
	}

	// The catalog must be loadable at startup; an empty catalog on every
	// read is a misconfiguration, not a degraded state.
	if err := svc.CheckReadiness(ctx); err != nil {
		return fmt.Errorf("failed to load any catalog source: %w", err)
	}

	var corsConfig *config.CORSConfig
	if cfg.Server != nil {
		corsConfig = cfg.Server.CORS
	}

	router := api.NewServer(svc,
		api.WithMiddlewares(
			middleware.Timeout(serverRequestTimeout),
			metrics.Middleware,
			api.LoggingMiddleware,
		),
		api.WithCORS(corsConfig),
		api.WithMetricsHandler(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	// Serve until interrupted, then drain connections
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-stop:
		slog.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Server stopped")
	return nil
}
