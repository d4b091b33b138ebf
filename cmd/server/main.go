package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lucasmontegu/driwet-sub001/internal/cache"
	"github.com/lucasmontegu/driwet-sub001/internal/clients/httpx"
	"github.com/lucasmontegu/driwet-sub001/internal/clients/places"
	"github.com/lucasmontegu/driwet-sub001/internal/clients/weather"
	"github.com/lucasmontegu/driwet-sub001/internal/config"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/risk"
	"github.com/lucasmontegu/driwet-sub001/internal/server"
	"github.com/lucasmontegu/driwet-sub001/internal/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "driwet: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// A missing .env file is fine; env vars may come from the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, stats, err := newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	weatherClient := weather.NewClient(
		cfg.Weather.APIKey,
		cfg.Weather.BaseURL,
		httpx.New(&http.Client{Timeout: cfg.Weather.Timeout}, "openweathermap", httpx.DefaultRetryPolicy()),
	)
	placesClient := places.NewClient(
		cfg.Places.APIKey,
		cfg.Places.BaseURL,
		httpx.New(&http.Client{Timeout: cfg.Places.Timeout}, "poi-search", httpx.DefaultRetryPolicy()),
	)

	classifier := risk.NewClassifier(cfg.Risk)
	policy := services.NewRefreshPolicy(cfg.Refresh.FastInterval, cfg.Refresh.DefaultInterval)

	routeSvc := services.NewRouteWeatherService(weatherClient, store, classifier, policy, services.RouteWeatherConfig{
		SampleIntervalKm:    cfg.Sampling.IntervalKm,
		WeatherTTL:          cfg.Weather.TTL,
		AlertTTL:            cfg.Weather.AlertTTL,
		WeatherCellDecimals: cfg.Weather.CellDecimals,
		AlertRadiusKm:       cfg.Weather.AlertRadiusKm,
	}, logger)

	placesSvc := services.NewSafePlacesService(placesClient, store, services.SafePlacesConfig{
		TTL:          cfg.Places.TTL,
		CellDecimals: cfg.Places.CellDecimals,
		SearchLimit:  cfg.Places.SearchLimit,
	}, logger)

	refresher := services.NewRouteRefresher(routeSvc, policy, watchedRoutes(cfg), logger)
	refresher.Start(ctx)
	defer refresher.Stop()

	srv := server.New(server.Config{
		CorsOrigins:    cfg.Server.CorsOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, routeSvc, placesSvc, stats, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("cache_backend", cfg.Cache.Backend),
			zap.Int("watched_routes", len(cfg.Refresh.WatchedRoutes)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

// newLogger builds the process logger. DRIWET_LOG_DEV=1 selects the
// human-readable development encoder.
func newLogger() (*zap.Logger, error) {
	if os.Getenv("DRIWET_LOG_DEV") == "1" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newStore builds the configured cache backend and its stats view.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Store, cache.StatsProvider, error) {
	switch cfg.Cache.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Cache.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		store := cache.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		go cleanupLoop(ctx, store, cfg.Cache.CleanupInterval, logger)
		return store, store, nil
	default:
		store := cache.NewMemoryStore(logger)
		store.StartPeriodicCleanup(ctx, cfg.Cache.CleanupInterval)
		return store, store, nil
	}
}

// cleanupLoop periodically drops expired postgres rows.
func cleanupLoop(ctx context.Context, store *cache.PostgresStore, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupStale(ctx)
			if err != nil {
				logger.Warn("cache cleanup failed", zap.Error(err))
			} else if removed > 0 {
				logger.Debug("cache cleanup removed stale rows", zap.Int64("removed", removed))
			}
		}
	}
}

// watchedRoutes converts the configured routes into the refresher's form.
func watchedRoutes(cfg *config.Config) []services.WatchedRoute {
	routes := make([]services.WatchedRoute, 0, len(cfg.Refresh.WatchedRoutes))
	for _, r := range cfg.Refresh.WatchedRoutes {
		routes = append(routes, services.WatchedRoute{
			ID:          r.ID,
			Name:        r.Name,
			Origin:      geo.Point{Latitude: r.Origin.Latitude, Longitude: r.Origin.Longitude},
			Destination: geo.Point{Latitude: r.Destination.Latitude, Longitude: r.Destination.Longitude},
			Polyline:    r.Polyline,
		})
	}
	return routes
}
