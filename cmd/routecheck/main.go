// Command routecheck analyzes a single route from the command line and
// prints the aggregated result as JSON. Useful for poking at provider
// behavior without running the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/lucasmontegu/driwet-sub001/internal/cache"
	"github.com/lucasmontegu/driwet-sub001/internal/clients/httpx"
	"github.com/lucasmontegu/driwet-sub001/internal/clients/weather"
	"github.com/lucasmontegu/driwet-sub001/internal/config"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/risk"
	"github.com/lucasmontegu/driwet-sub001/internal/services"
)

func main() {
	origin := flag.String("origin", "", "origin as lat,lng")
	destination := flag.String("destination", "", "destination as lat,lng")
	polyline := flag.String("polyline", "", "optional encoded route polyline")
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*origin, *destination, *polyline, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "routecheck: %v\n", err)
		os.Exit(1)
	}
}

func run(originArg, destinationArg, polyline, configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Weather.APIKey == "" {
		return fmt.Errorf("weather API key is not configured (set DRIWET_WEATHER__API_KEY)")
	}

	origin, err := parsePoint(originArg)
	if err != nil {
		return fmt.Errorf("invalid -origin: %w", err)
	}
	destination, err := parsePoint(destinationArg)
	if err != nil {
		return fmt.Errorf("invalid -destination: %w", err)
	}

	logger := zap.NewNop()
	store := cache.NewMemoryStore(logger)

	weatherClient := weather.NewClient(
		cfg.Weather.APIKey,
		cfg.Weather.BaseURL,
		httpx.New(&http.Client{Timeout: cfg.Weather.Timeout}, "openweathermap", httpx.DefaultRetryPolicy()),
	)

	svc := services.NewRouteWeatherService(
		weatherClient,
		store,
		risk.NewClassifier(cfg.Risk),
		services.NewRefreshPolicy(cfg.Refresh.FastInterval, cfg.Refresh.DefaultInterval),
		services.RouteWeatherConfig{
			SampleIntervalKm:    cfg.Sampling.IntervalKm,
			WeatherTTL:          cfg.Weather.TTL,
			AlertTTL:            cfg.Weather.AlertTTL,
			WeatherCellDecimals: cfg.Weather.CellDecimals,
			AlertRadiusKm:       cfg.Weather.AlertRadiusKm,
		},
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := svc.AnalyzeRoute(ctx, services.RouteRequest{
		Origin:      origin,
		Destination: destination,
		Polyline:    polyline,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// parsePoint parses "lat,lng".
func parsePoint(arg string) (geo.Point, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("expected lat,lng, got %q", arg)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng)
}
