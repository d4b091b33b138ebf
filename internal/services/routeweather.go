// Package services holds the application services behind the HTTP
// handlers: the route weather aggregator, the safe place resolver, the
// adaptive refresh policy, and the background route refresher.
package services

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lucasmontegu/driwet-sub001/internal/cache"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/risk"
	"github.com/lucasmontegu/driwet-sub001/internal/lib/route"
	"github.com/lucasmontegu/driwet-sub001/internal/types"
)

// maxConcurrentFetches bounds the provider fan-out per route analysis.
const maxConcurrentFetches = 4

// WeatherProvider fetches observations and active alerts from the
// external weather service. The weather client satisfies it.
type WeatherProvider interface {
	GetObservation(ctx context.Context, lat, lng float64) (types.WeatherObservation, error)
	GetActiveAlerts(ctx context.Context, lat, lng, radiusKm float64) ([]types.HazardAlert, error)
}

// RouteWeatherConfig tunes the aggregator.
type RouteWeatherConfig struct {
	SampleIntervalKm    float64
	WeatherTTL          time.Duration
	AlertTTL            time.Duration
	WeatherCellDecimals int
	AlertRadiusKm       float64
}

// RouteRequest describes one route to analyze. Polyline is optional; when
// empty the analysis degrades to straight-line sampling between origin
// and destination.
type RouteRequest struct {
	Origin      geo.Point
	Destination geo.Point
	Polyline    string

	// IntervalKm overrides the configured sample interval when positive.
	IntervalKm float64

	// AlertRadiusKm overrides the configured alert search radius when
	// positive.
	AlertRadiusKm float64
}

// RouteWeatherService samples a route, resolves weather per sample point
// through the geo-cell cache, classifies road risk, and merges alerts
// into a single route-level answer.
type RouteWeatherService struct {
	provider   WeatherProvider
	store      cache.Store
	classifier *risk.Classifier
	policy     RefreshPolicy
	cfg        RouteWeatherConfig
	logger     *zap.Logger
}

// NewRouteWeatherService creates the aggregator.
func NewRouteWeatherService(provider WeatherProvider, store cache.Store, classifier *risk.Classifier, policy RefreshPolicy, cfg RouteWeatherConfig, logger *zap.Logger) *RouteWeatherService {
	return &RouteWeatherService{
		provider:   provider,
		store:      store,
		classifier: classifier,
		policy:     policy,
		cfg:        cfg,
		logger:     logger,
	}
}

// pointResult is the outcome for one sample point. Failed points are
// omitted from the result rather than failing the whole route.
type pointResult struct {
	segment types.RouteSegment
	alerts  []types.HazardAlert
	err     error
}

// AnalyzeRoute runs the full aggregation for one route. Points that fail
// to resolve are dropped; the analysis fails only when every point fails.
func (s *RouteWeatherService) AnalyzeRoute(ctx context.Context, req RouteRequest) (*types.RouteWeatherResult, error) {
	if req.IntervalKm < 0 || req.AlertRadiusKm < 0 {
		return nil, types.NewAppError(types.ErrCodeInvalidInput, "interval and alert radius must not be negative", nil)
	}

	samples, err := s.sample(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInvalidInput, "invalid route", err)
	}

	alertRadiusKm := s.cfg.AlertRadiusKm
	if req.AlertRadiusKm > 0 {
		alertRadiusKm = req.AlertRadiusKm
	}

	results := make([]pointResult, len(samples.Points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, sp := range samples.Points {
		g.Go(func() error {
			results[i] = s.resolvePoint(gctx, sp, alertRadiusKm)
			return nil
		})
	}
	// Workers report failure through their slot, never through the group.
	_ = g.Wait()

	now := time.Now().UTC()
	segments := make([]types.RouteSegment, 0, len(results))
	alertsByID := make(map[string]types.HazardAlert)
	for i, res := range results {
		if res.err != nil {
			s.logger.Warn("dropping route sample point",
				zap.Float64("distance_km", samples.Points[i].DistanceKm),
				zap.Error(res.err))
			continue
		}
		segments = append(segments, res.segment)
		for _, a := range res.alerts {
			if !a.ExpiresAt.IsZero() && a.ExpiresAt.Before(now) {
				continue
			}
			existing, ok := alertsByID[a.ID]
			if !ok || a.Severity.Risk().Priority() > existing.Severity.Risk().Priority() {
				alertsByID[a.ID] = a
			}
		}
	}

	if len(segments) == 0 {
		return nil, types.NewAppError(types.ErrCodeWeatherUnavailable,
			"weather data unavailable for every point on the route", nil)
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].DistanceKm < segments[j].DistanceKm
	})

	alerts := make([]types.HazardAlert, 0, len(alertsByID))
	for _, a := range alertsByID {
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool {
		pi, pj := alerts[i].Severity.Risk().Priority(), alerts[j].Severity.Risk().Priority()
		if pi != pj {
			return pi > pj
		}
		return alerts[i].ID < alerts[j].ID
	})

	overall := types.RiskLow
	for _, seg := range segments {
		overall = types.MaxRisk(overall, seg.Weather.RoadRisk)
	}
	for _, a := range alerts {
		overall = types.MaxRisk(overall, a.Severity.Risk())
	}

	next := s.policy.NextInterval(RefreshSignal{
		HasActiveAlerts: len(alerts) > 0,
		HighestRisk:     overall,
	})

	return &types.RouteWeatherResult{
		OverallRisk:           overall,
		Segments:              segments,
		Alerts:                alerts,
		Providers:             providerList(segments),
		HasRouteGeometry:      samples.HasRouteGeometry,
		FetchedAt:             now,
		SuggestedNextUpdateMs: next.Milliseconds(),
	}, nil
}

// Observation resolves current conditions for a single coordinate through
// the same cache-first path the route analysis uses. The returned source
// is cache or live.
func (s *RouteWeatherService) Observation(ctx context.Context, lat, lng float64) (types.WeatherObservation, string, error) {
	p, err := geo.NewPoint(lat, lng)
	if err != nil {
		return types.WeatherObservation{}, "", types.NewAppError(types.ErrCodeInvalidInput, "invalid coordinates", err)
	}

	obs, source, err := s.observationAt(ctx, p)
	if err != nil {
		return types.WeatherObservation{}, "", err
	}
	obs.RoadRisk = s.classifier.Classify(obs)
	return obs, source, nil
}

// sample picks the evaluation points for the request: the encoded polyline
// when present, otherwise the straight-line degradation.
func (s *RouteWeatherService) sample(req RouteRequest) (route.Samples, error) {
	intervalKm := s.cfg.SampleIntervalKm
	if req.IntervalKm > 0 {
		intervalKm = req.IntervalKm
	}
	if req.Polyline != "" {
		return route.SampleEncoded(req.Polyline, intervalKm)
	}
	return route.SampleStraightLine(req.Origin, req.Destination)
}

// resolvePoint fetches weather and alerts for one sample point. An alert
// fetch failure degrades to a segment without alerts; only a missing
// observation fails the point.
func (s *RouteWeatherService) resolvePoint(ctx context.Context, sp route.SamplePoint, alertRadiusKm float64) pointResult {
	obs, source, err := s.observationAt(ctx, sp.Point)
	if err != nil {
		return pointResult{err: err}
	}
	obs.RoadRisk = s.classifier.Classify(obs)

	alerts, err := s.alertsAt(ctx, sp.Point, alertRadiusKm)
	if err != nil {
		s.logger.Warn("alert lookup failed, continuing without alerts",
			zap.Float64("lat", sp.Point.Latitude),
			zap.Float64("lng", sp.Point.Longitude),
			zap.Error(err))
		alerts = nil
	}

	return pointResult{
		segment: types.RouteSegment{
			DistanceKm: sp.DistanceKm,
			Latitude:   sp.Point.Latitude,
			Longitude:  sp.Point.Longitude,
			Weather:    obs,
			Source:     source,
		},
		alerts: alerts,
	}
}

// observationAt is the cache-first observation lookup for one cell. Cache
// write failures are logged and swallowed; a fetched observation is always
// returned to the caller.
func (s *RouteWeatherService) observationAt(ctx context.Context, p geo.Point) (types.WeatherObservation, string, error) {
	key := cache.CellKey("weather", p, s.cfg.WeatherCellDecimals, 0)

	var cached types.WeatherObservation
	entry, found, err := s.store.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("weather cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		s.logger.Debug("weather cache hit", zap.String("key", key), zap.Time("fetched_at", entry.FetchedAt))
		return cached, types.SourceCache, nil
	}

	obs, err := s.provider.GetObservation(ctx, p.Latitude, p.Longitude)
	if err != nil {
		return types.WeatherObservation{}, "", err
	}

	if err := s.store.Put(ctx, key, obs, s.cfg.WeatherTTL); err != nil {
		s.logger.Warn("weather cache write failed",
			zap.String("key", key),
			zap.String("code", string(types.ErrCodeCacheWriteFailed)),
			zap.Error(err))
	}
	return obs, types.SourceLive, nil
}

// alertsAt is the cache-first alert lookup for one cell. The search radius
// is part of the key so different radii never share an entry.
func (s *RouteWeatherService) alertsAt(ctx context.Context, p geo.Point, radiusKm float64) ([]types.HazardAlert, error) {
	key := cache.CellKey("alerts", p, s.cfg.WeatherCellDecimals, radiusKm)

	var cached []types.HazardAlert
	_, found, err := s.store.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("alert cache read failed", zap.String("key", key), zap.Error(err))
	} else if found {
		return cached, nil
	}

	alerts, err := s.provider.GetActiveAlerts(ctx, p.Latitude, p.Longitude, radiusKm)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []types.HazardAlert{}
	}

	if err := s.store.Put(ctx, key, alerts, s.cfg.AlertTTL); err != nil {
		s.logger.Warn("alert cache write failed",
			zap.String("key", key),
			zap.String("code", string(types.ErrCodeCacheWriteFailed)),
			zap.Error(err))
	}
	return alerts, nil
}

// providerList collects the distinct providers that contributed segments,
// sorted for stable output.
func providerList(segments []types.RouteSegment) []string {
	seen := make(map[string]bool)
	providers := make([]string, 0, 1)
	for _, seg := range segments {
		if seg.Weather.Provider == "" || seen[seg.Weather.Provider] {
			continue
		}
		seen[seg.Weather.Provider] = true
		providers = append(providers, seg.Weather.Provider)
	}
	sort.Strings(providers)
	return providers
}
