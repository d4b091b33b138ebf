package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lucasmontegu/driwet-sub001/internal/lib/geo"
)

// WatchedRoute is a route the refresher keeps warm in the background.
type WatchedRoute struct {
	ID          string
	Name        string
	Origin      geo.Point
	Destination geo.Point
	Polyline    string
}

// RouteRefresher re-analyzes watched routes in the background so their
// weather cells stay warm. Each route runs its own loop whose wait is the
// interval the last analysis suggested, so a route under an active alert
// polls on the fast cadence and a calm route on the default one.
type RouteRefresher struct {
	service *RouteWeatherService
	policy  RefreshPolicy
	routes  []WatchedRoute
	logger  *zap.Logger

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewRouteRefresher creates a refresher for the given routes.
func NewRouteRefresher(service *RouteWeatherService, policy RefreshPolicy, routes []WatchedRoute, logger *zap.Logger) *RouteRefresher {
	return &RouteRefresher{
		service:  service,
		policy:   policy,
		routes:   routes,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start launches one refresh loop per watched route. Calling Start on a
// running refresher is a no-op.
func (r *RouteRefresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true

	for _, route := range r.routes {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.refreshLoop(ctx, route)
		}()
	}
	r.logger.Info("route refresher started", zap.Int("routes", len(r.routes)))
}

// Stop signals every loop to exit and waits for them.
func (r *RouteRefresher) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopChan)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("route refresher stopped")
}

// IsRunning reports whether the refresh loops are active.
func (r *RouteRefresher) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// refreshLoop analyzes one route forever, sleeping between runs for the
// interval the analysis itself suggested.
func (r *RouteRefresher) refreshLoop(ctx context.Context, route WatchedRoute) {
	wait := r.refreshOnce(ctx, route)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-timer.C:
			timer.Reset(r.refreshOnce(ctx, route))
		}
	}
}

// refreshOnce runs one analysis and returns the wait before the next. A
// failed analysis backs off on the default cadence.
func (r *RouteRefresher) refreshOnce(ctx context.Context, route WatchedRoute) time.Duration {
	refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	result, err := r.service.AnalyzeRoute(refreshCtx, RouteRequest{
		Origin:      route.Origin,
		Destination: route.Destination,
		Polyline:    route.Polyline,
	})
	if err != nil {
		r.logger.Warn("background route refresh failed",
			zap.String("route_id", route.ID),
			zap.Error(err))
		return r.policy.Default
	}

	wait := r.policy.NextInterval(RefreshSignal{ServerSuggestedMs: result.SuggestedNextUpdateMs})
	r.logger.Debug("background route refresh completed",
		zap.String("route_id", route.ID),
		zap.String("overall_risk", string(result.OverallRisk)),
		zap.Duration("next_refresh", wait))
	return wait
}
