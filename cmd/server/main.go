package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-portal/pkg/materials/api"
	"github.com/tendant/simple-portal/pkg/materials/config"
)

func main() {
	configPath := flag.String("config", "", "optional YAML or .env configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config file]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(flag.CommandLine.Output(), config.Usage())
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.ServerConfig) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg *config.ServerConfig, logger *slog.Logger) error {
	ctx := context.Background()

	signer := cfg.LinkSigner()
	store, err := cfg.BuildStore(ctx, signer)
	if err != nil {
		return fmt.Errorf("failed to build storage: %w", err)
	}

	sink, closeSink, err := cfg.BuildEventSink(logger)
	if err != nil {
		return fmt.Errorf("failed to build event sinks: %w", err)
	}
	defer closeSink()

	svc, err := cfg.BuildService(store, sink, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}

	authn, closeAuth, err := cfg.BuildAuthenticator(ctx)
	if err != nil {
		return fmt.Errorf("failed to build authenticator: %w", err)
	}
	defer closeAuth()

	handler := api.NewHandler(api.Config{
		Service:       svc,
		Authenticator: authn,
		Tokens:        cfg.BuildTokens(),
		Signer:        signer,
		AuthRequired:  cfg.AuthRequired,
		Logger:        logger,
	})

	router, err := routes(cfg, handler, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Materials portal starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"storage", cfg.StorageURL,
			"auth_required", cfg.AuthRequired,
			"signed_links", signer.IsEnabled(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exiting")
	return nil
}

func routes(cfg *config.ServerConfig, handler *api.Handler, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*chi.Mux, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if cfg.EnableMetrics {
		metrics, err := api.NewRequestMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register request metrics: %w", err)
		}
		r.Use(metrics.Middleware)
	}
	if !cfg.IsProduction() {
		r.Use(api.CORS())
	}

	if cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	portal := handler.Routes()
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		portal.NotFound(http.FileServer(http.Dir(cfg.StaticDir)).ServeHTTP)
	}
	r.Mount("/", portal)
	return r, nil
}
